// Package engine answers what is active for a client or sync group, whether
// clients currently disagree, and stores edited active sets.
//
// Views overlay the registry onto an active set. Names found in an active set
// but not in the registry are added to it. The aggregated view compares each
// client's definition of a server against the first client that reported it,
// and the divergence check compares the clients' own config files rather than
// their managed copies.
package engine
