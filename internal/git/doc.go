// Package git versions the emitted output tree. After a build the output
// directory can be committed to a local repository so every accepted set of
// units is recoverable and diffs between builds are reviewable.
package git
