// Package pin implements the four-slot PIN entry buffer used on the second
// factor screen. The buffer submits itself the moment every slot holds a
// digit and resets when the submission fails.
package pin
