// Package grading holds the grading rules of the class record: grading config
// resolution per class type, component name normalization, the weighted term
// grade calculation with its grade point scale, and proportional max score
// rescaling. The package is free of I/O; services feed it stored data.
package grading
