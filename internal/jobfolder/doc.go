// Package jobfolder tracks fan-out completeness per feature. A folder opens
// with a fixed set of required slots, contributors fill them, and the folder
// is complete only when the filled set exactly equals the required set.
package jobfolder
