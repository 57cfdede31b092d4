package config

// Reset clears the per-type cache between tests.
var Reset = reset
