package nd

const (
	// IPProtocol is the IP protocol number carrying ND datagrams.
	IPProtocol = 77

	// IPHeaderLen is the length of an IPv4 header without options.
	IPHeaderLen = 20

	// HeaderLen is the length of the ND header.
	HeaderLen = 28

	// PacketHeaderLen is the IPv4 plus ND header length. Reply sizes are
	// expressed including it.
	PacketHeaderLen = IPHeaderLen + HeaderLen

	// BlockSize is the unit of block numbers.
	BlockSize = 512

	// MaxData is the largest payload carried by one datagram.
	MaxData = 1024

	// MaxIO is the largest byte count of one logical request.
	MaxIO = 63 * 1024

	// MaxPacket is the largest datagram the server sends or accepts.
	MaxPacket = PacketHeaderLen + MaxData

	// SizeQueryBlkno is the reserved block number requesting the minor
	// size instead of addressing a block.
	SizeQueryBlkno = 0x10000000

	// SizeQueryLen is the byte count of a size query: one 32-bit block
	// count.
	SizeQueryLen = 4

	// Version is written in replies. Requests are accepted with any version.
	Version = 0
)
