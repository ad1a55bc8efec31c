// Package dsd parses DSF and DSDIFF container files and decimates their
// 1-bit Direct Stream Digital payload to interleaved float32 PCM.
//
// DSF field layout is grounded on the "DSF File Format Specification",
// v1.01, Sony Corporation (the same source snmoore.net/audio/dsf parses).
// DSDIFF field layout follows the DSDIFF 1.5 specification's FRM8/prop/DSD
// chunk structure.
package dsd
