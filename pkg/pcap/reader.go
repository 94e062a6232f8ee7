package pcap

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"TrafficGraph/internal/engine/protocol"
	"TrafficGraph/internal/metrics"
	"TrafficGraph/internal/model"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"k8s.io/klog/v2"
)

var ngMagic = []byte{0x0A, 0x0D, 0x0D, 0x0A}

// packetDataSource is implemented by both pcapgo.Reader and pcapgo.NgReader.
type packetDataSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader reads packets from a capture file, or from every capture file in a
// directory, and turns IP packets into tuples.
type Reader struct {
	files []string

	totalPackets uint64
	ipPackets    uint64

	mu   sync.Mutex
	errs []error
}

// NewReader creates a reader for path. A missing path, an unreadable file or
// a directory without capture files yields model.ErrSourceNotFound.
func NewReader(path string) (*Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrSourceNotFound, path, err)
	}

	if !info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrSourceNotFound, path, err)
		}
		f.Close()
		return &Reader{files: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrSourceNotFound, path, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".pcap" || ext == ".pcapng" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s contains no .pcap or .pcapng files", model.ErrSourceNotFound, path)
	}
	sort.Strings(files)
	return &Reader{files: files}, nil
}

// Files returns the capture files this reader covers, in read order.
func (r *Reader) Files() []string {
	return append([]string(nil), r.files...)
}

// TotalPackets returns the number of packets read so far, IP or not.
func (r *Reader) TotalPackets() uint64 {
	return atomic.LoadUint64(&r.totalPackets)
}

// IPPackets returns the number of IP packets read so far.
func (r *Reader) IPPackets() uint64 {
	return atomic.LoadUint64(&r.ipPackets)
}

// Errors returns the recoverable errors met while reading.
func (r *Reader) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *Reader) recordError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

// ReadPackets reads every file in order and sends the parsed tuples to out.
// It closes out when done. Unreadable files are recorded and skipped.
func (r *Reader) ReadPackets(ctx context.Context, out chan<- *model.PacketTuple) error {
	defer close(out)
	for _, file := range r.files {
		if err := r.ReadFile(ctx, file, out); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			klog.Warningf("Skipping capture file: %v", err)
		}
	}
	return nil
}

// ReadFile reads a single capture file in capture order and sends the parsed
// tuples to out. It does not close out. Packets that fail to decode are
// recorded and skipped; non-IP packets are only counted.
func (r *Reader) ReadFile(ctx context.Context, path string, out chan<- *model.PacketTuple) error {
	f, err := os.Open(path)
	if err != nil {
		err = fmt.Errorf("failed to open capture file '%s': %w", path, err)
		r.recordError(err)
		return err
	}
	defer f.Close()

	source, err := openSource(f)
	if err != nil {
		err = fmt.Errorf("failed to read capture header of '%s': %w", path, err)
		r.recordError(err)
		return err
	}

	klog.Infof("Reading packets from '%s'...", path)
	var count uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, ci, err := source.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A truncated capture keeps what was read before the damage.
			err = fmt.Errorf("capture file '%s' truncated after %d packets: %w", path, count, err)
			r.recordError(err)
			return err
		}
		count++
		atomic.AddUint64(&r.totalPackets, 1)
		metrics.PacketsDecoded.Inc()

		packet := gopacket.NewPacket(data, source.LinkType(), gopacket.Default)
		packet.Metadata().CaptureInfo = ci
		tuple, err := protocol.ParsePacket(packet)
		if err != nil {
			if !errors.Is(err, protocol.ErrNotIP) {
				r.recordError(fmt.Errorf("'%s' packet %d: %w", path, count, err))
			}
			continue
		}
		atomic.AddUint64(&r.ipPackets, 1)

		select {
		case out <- tuple:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	klog.Infof("Finished reading %d packets from '%s'.", count, path)
	return nil
}

func openSource(f io.Reader) (packetDataSource, error) {
	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(magic, ngMagic) {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}
