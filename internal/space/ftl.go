package space

// Environment variable names read by the FTL build script.
const (
	GroupSize      = "FTL_GROUP_SIZE"
	BufferCapacity = "FTL_BUFFER_CAPACITY"
	PGMEpsilon     = "FTL_PGM_EPSILON"
)

// FTLParameters returns the tunable FTL build parameters.
//
// Group size tops out at 4096: the segment descriptor stores seg_num in 15
// bits, so a group can hold at most 32767 segments even when every LBA forms
// its own segment.
func FTLParameters() []Parameter {
	return []Parameter{
		{
			Name:    GroupSize,
			Label:   "G",
			Values:  []int{128, 256, 512, 1024, 2048, 4096},
			Default: 2048,
		},
		{
			Name:    BufferCapacity,
			Label:   "Buf",
			Values:  []int{65536, 131072, 262144, 524288, 1048576, 2097152, 4194304},
			Default: 1048576,
		},
		{
			Name:    PGMEpsilon,
			Label:   "Eps",
			Values:  []int{8, 16, 32, 64, 128, 256, 512},
			Default: 128,
		},
	}
}

// FTL returns the FTL configuration space.
func FTL() *Space {
	s, err := New(FTLParameters()...)
	if err != nil {
		panic(err)
	}
	return s
}
