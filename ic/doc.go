// Package ic implements polymorphic inline caches for a baseline tier.
//
// Every IC-bearing op of a compiled script gets an Entry whose chain of
// stubs ends in a fallback. A stub guards on the operand types or shapes it
// was built for and either produces the result or passes to the next stub.
// The fallback runs the generic operation through the Runtime and may attach
// a new stub ahead of itself, up to a per-family cap.
//
// Type monitor chains record the types of op results and script arguments.
// Type update chains guard property and element writes so that heap type
// sets stay complete.
//
// An Engine has a single mutator. The Sweeper only requests sweeps; they run
// at Engine.SafePoint.
package ic
