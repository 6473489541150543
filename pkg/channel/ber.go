package channel

// CountErrors returns the number of differing bits over the common prefix
// of a and b, and the length of that prefix.
func CountErrors(a, b []uint8) (errors, compared int) {
	compared = min(len(a), len(b))
	for i := 0; i < compared; i++ {
		if a[i] != b[i] {
			errors++
		}
	}
	return errors, compared
}

// BER returns the bit error rate over the common prefix of a and b.
// Comparing nothing yields 1.0.
func BER(a, b []uint8) float64 {
	errs, n := CountErrors(a, b)
	if n == 0 {
		return 1.0
	}
	return float64(errs) / float64(n)
}
