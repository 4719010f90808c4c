// Package conv converts sizes and counts read from untrusted input (artifact
// headers, blob sizes) to int with bounds checks.
package conv
