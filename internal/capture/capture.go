// Package capture records the bytes of every connection into a pcap
// file, wrapped in synthetic Ethernet/IPv4/TCP framing so the trace
// opens in Wireshark with its FIX dissector.
package capture

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const snapLen = 65535

type flowState struct {
	seq uint32
}

// Writer appends one pcap record per transport read or write. Safe for
// concurrent use by multiple connections.
type Writer struct {
	mu    sync.Mutex
	file  *os.File
	w     *pcapgo.Writer
	flows map[string]*flowState
	now   func() time.Time
}

// NewWriter creates path and writes the pcap file header.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap: %w", err)
	}

	w := pcapgo.NewWriter(file)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		file.Close()
		return nil, fmt.Errorf("write pcap header: %w", err)
	}

	return &Writer{
		file:  file,
		w:     w,
		flows: map[string]*flowState{},
		now:   time.Now,
	}, nil
}

// Record writes one framed packet. outbound selects the direction the
// payload moved relative to local.
func (w *Writer) Record(local, remote net.Addr, outbound bool, payload []byte) error {
	srcIP, srcPort := addrParts(local, true)
	dstIP, dstPort := addrParts(remote, false)
	if !outbound {
		srcIP, dstIP = dstIP, srcIP
		srcPort, dstPort = dstPort, srcPort
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return fmt.Errorf("pcap writer closed")
	}

	fwd := w.flow(srcIP, srcPort, dstIP, dstPort)
	rev := w.flow(dstIP, dstPort, srcIP, srcPort)
	if fwd.seq == 0 {
		fwd.seq = 1
	}
	seq := fwd.seq
	fwd.seq += uint32(len(payload))

	ethernet := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		ACK:     true,
		PSH:     true,
		Seq:     seq,
		Ack:     rev.seq,
	}
	_ = tcp.SetNetworkLayerForChecksum(ip)

	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buffer, opts, ethernet, ip, tcp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}

	return w.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     w.now(),
		CaptureLength: len(buffer.Bytes()),
		Length:        len(buffer.Bytes()),
	}, buffer.Bytes())
}

// Close flushes and closes the pcap file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Writer) flow(srcIP net.IP, srcPort uint16, dstIP net.IP, dstPort uint16) *flowState {
	key := fmt.Sprintf("%s:%d->%s:%d", srcIP, srcPort, dstIP, dstPort)
	f, ok := w.flows[key]
	if !ok {
		f = &flowState{}
		w.flows[key] = f
	}
	return f
}

// addrParts extracts an IPv4 address and port, synthesizing stable
// placeholders for address types without one, like in-memory pipes.
func addrParts(addr net.Addr, local bool) (net.IP, uint16) {
	fallbackIP := net.IPv4(192, 168, 100, 20).To4()
	fallbackPort := uint16(9940)
	if local {
		fallbackIP = net.IPv4(192, 168, 100, 10).To4()
		fallbackPort = 50000
	}
	if addr == nil {
		return fallbackIP, fallbackPort
	}

	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		if ip4 := tcpAddr.IP.To4(); ip4 != nil {
			return ip4, uint16(tcpAddr.Port)
		}
		return fallbackIP, uint16(tcpAddr.Port)
	}

	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return fallbackIP, fallbackPort
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		ip = fallbackIP
	} else {
		ip = ip.To4()
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return ip, fallbackPort
	}
	return ip, uint16(port)
}
