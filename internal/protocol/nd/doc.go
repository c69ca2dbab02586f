// Package nd implements the ND (network disk) wire format.
//
// ND datagrams are carried directly over IP protocol 77. Each datagram
// holds a fixed 28-byte header in network byte order followed by an
// optional payload whose length is implied by the datagram size:
//
//	 0      1      2      3
//	+------+------+------+------+
//	|  op  |minor |error | ver  |
//	+------+------+------+------+
//	|            seq            |
//	|           blkno           |
//	|          bcount           |
//	|           resid           |
//	|           caddr           |
//	|          ccount           |
//	+---------------------------+
//	|     payload (ccount)      |
//
// A request addresses bcount bytes starting at block blkno of a minor.
// Reads larger than MaxData are answered with several reply fragments,
// each describing its slice of the transfer with caddr (offset within the
// request) and ccount (fragment length). Writes are split by the client,
// one fragment per datagram.
//
// The block number SizeQueryBlkno does not address a block: a read with
// that block number and bcount 4 returns the minor size in blocks.
package nd
