package diag

import "fmt"

// Code is a compact, stable identifier for a diagnostic kind.
// Ranges are allocated per pipeline stage:
//
//	1xxx snapshot loading
//	2xxx classification
//	3xxx lifetime inference
//	4xxx dependency graph
//	5xxx cross-module aggregation
//	6xxx decorator/interceptor chains
//	7xxx synthesis
type Code uint16

const (
	UnknownCode Code = 0

	// Snapshot loading
	SnapMalformed       Code = 1001
	SnapDuplicateModule Code = 1002
	SnapDuplicateType   Code = 1003
	SnapUnknownMarker   Code = 1004
	SnapBadMarkerArg    Code = 1005
	SnapBadAccess       Code = 1006
	SnapBadFlag         Code = 1007
	SnapBadActivation   Code = 1008

	// Classification
	ClassInaccessibleMatch Code = 2001
	ClassRedundantFactory  Code = 2002
	ClassOrphaned          Code = 2003

	// Lifetime inference
	LifeBadLifetimeValue Code = 3001
	LifeDeferredParams   Code = 3002

	// Dependency graph
	GraphCycle        Code = 4001
	GraphCaptive      Code = 4002
	GraphZeroMatch    Code = 4003
	GraphUnresolved   Code = 4004
	GraphSelfEdge     Code = 4005
	GraphUnknownParam Code = 4006

	// Cross-module aggregation
	AggMissingOptIn     Code = 5001
	AggConflictingOrder Code = 5002
	AggUnknownModule    Code = 5003
	AggOrderGap         Code = 5004

	// Chains
	ChainContract      Code = 6001
	ChainOrderGap      Code = 6002
	ChainUnknownTarget Code = 6003

	// Synthesis
	SynthInternal Code = 7001
)

func (c Code) String() string {
	return fmt.Sprintf("WP%04d", uint16(c))
}
