// Package enhance runs each captured block through a denoiser session before
// voice activity detection. The session keeps any filter history itself; the
// stage only enforces the one-call-per-block, same-length contract.
package enhance
