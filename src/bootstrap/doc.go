/*
Package bootstrap implements the orchestrator that fast-forwards a node's chain
data to a known-good snapshot.

A bootstrap happens in two stages, possibly separated by a restart of the
process:

	Stage I:  acquire the archive (download or user file)
	          -> check the container signature
	          -> extract it into the staging folder
	          -> check completeness and network identity
	          -> write the verified marker

	Stage II: swap every staged entry into the live data set
	          -> merge the staged configuration
	          -> remove peers.dat and banlist.dat
	          -> remove the staging folder and archive

The Orchestrator runs each stage in a single background goroutine and rejects,
rather than queues, a start request while a stage is running. Progress, phase
changes and completions are delivered to Observers. Only the acquisition step
of stage I is cancellable.

Exactly one Orchestrator exists per AppContext, which the hosting process
creates once.
*/
package bootstrap
