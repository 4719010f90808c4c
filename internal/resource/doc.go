// Package resource governs the shared budgets of codec work.
//
//   - Workers: a weighted semaphore bounding concurrent training and
//     batch-encoding goroutines across every caller sharing the Controller.
//   - Memory: fail-fast accounting of training sample buffers.
//   - IO: a token bucket throttling artifact uploads and downloads.
//
// All methods are safe for concurrent use and a nil *Controller is a valid
// unlimited controller.
package resource
