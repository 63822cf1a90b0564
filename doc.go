/*
Package od implements the object dictionary of a CANopen-style device: an
ordered table of objects addressed by a 16-bit index plus an 8-bit sub-index,
with attribute-tagged chunked access to their storage.

We implement:

1. Dictionaries, immutable ordered entry tables with binary-search lookup.

2. Objects in a closed set of layouts: single variables, arrays of a uniform
scalar, records of heterogeneous fields, and extended wrappers around any of
those.

3. Transfers, a chunked copy protocol between object storage and caller
buffers driven by a per-caller cursor, with partial results for values larger
than one buffer.

4. Extensions, letting the application take over access to chosen objects
with its own reader/writer pair while the declared metadata stays in force.

5. Typed access, generic one-shot getters and setters for the ten fixed-width
scalar types, plus inclusive range checks on the signed 32-bit domain.

# Access

Resolve an address once, then transfer:

	se, res := dict.Find(0x1017).Sub(0)
	if res != od.ResultOK {
		// res.AbortCode() is the matching CiA 301 abort
	}
	n, res := se.Read(buf)

SubEntry values are self-contained and cheap to keep; resolving once and
caching the result is the intended pattern for hot paths such as PDO
processing. Read and Write return ResultPartial when the caller's buffer is
smaller than the value, and the cursor remembers the position until the
transfer completes or Restart discards it.

For whole scalar values, Get and Set collapse resolution and transfer into
one call:

	interval, res := od.Get[uint16](dict.Find(0x1017), 0)
	res = od.Set[uint16](dict.Find(0x1017), 0, 500)

# Results

Every operation reports a Result code; nothing panics on data problems and
no failure is delivered any other way. Result satisfies error, and
Result.AbortCode maps the whole taxonomy onto CiA 301 transfer abort codes,
with the general error code for anything unknown.

# Concurrency

A built dictionary is immutable and safe for concurrent lookups and
resolutions. Transfers touch only the caller-owned SubEntry cursor plus the
object storage, so concurrent transfers over distinct sub-entries are safe;
concurrent writers of the same object interleave at byte granularity and
need application-level coordination, same as the C stacks this models.
Extensions are installed during single-threaded bring-up.
*/
package od
