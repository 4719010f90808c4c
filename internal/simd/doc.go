// Package simd holds the float32 kernels used by the codec and the CPU
// capability probe that reports which instruction sets the host offers.
//
// The kernels are written in portable Go with a fixed summation order so
// that codes and codebooks are bit-identical across hosts. Capability
// detection is informational: it is surfaced in codec stats and training
// logs. The PQCODEC_SIMD environment variable overrides the reported ISA
// and nothing else.
package simd
