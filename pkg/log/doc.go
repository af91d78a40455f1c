// Package log implements the structured logger shared by all conveyor
// components. Entries flow through a Formatter (text or JSON) into one or more
// Outputs; loggers are passed explicitly via dependency injection rather than
// through a process-wide default.
package log
