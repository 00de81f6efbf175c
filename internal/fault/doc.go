// Package fault classifies errors so transport layers can map them to
// status codes without string matching.
package fault
