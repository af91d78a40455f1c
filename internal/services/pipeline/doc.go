// Package pipelinesvc is the service facade over the pipeline components.
// It validates inputs, applies configured defaults, and logs mutations;
// transports call it rather than the components directly.
package pipelinesvc
