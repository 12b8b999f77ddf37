// Package utils holds small helpers shared by the runner and the bench CLI.
package utils

// CeilDiv returns the number of groups of size den needed to cover num.
func CeilDiv(num, den int) int {
	return (num + den - 1) / den
}
