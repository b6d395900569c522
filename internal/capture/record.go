// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/pcapgo"

	"grimm.is/appwall/internal/errors"
)

// RecordHeaderLen is the size of the metadata that precedes every relayed
// packet: seconds, microseconds, captured length and original length, each
// a little-endian uint32. This is a pcap record header; the stream carries
// no pcap file header.
const RecordHeaderLen = 16

// maxRecordLen bounds the captured length ReadRecord will allocate.
const maxRecordLen = 262144

// newRecordWriter frames packets for a relay client.
func newRecordWriter(w io.Writer) *pcapgo.Writer {
	return pcapgo.NewWriter(w)
}

// ReadRecord reads one relayed packet.
func ReadRecord(r io.Reader) (gopacket.CaptureInfo, []byte, error) {
	var hdr [RecordHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return gopacket.CaptureInfo{}, nil, err
	}

	sec := binary.LittleEndian.Uint32(hdr[0:4])
	usec := binary.LittleEndian.Uint32(hdr[4:8])
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(int64(sec), int64(usec)*int64(time.Microsecond)).UTC(),
		CaptureLength: int(binary.LittleEndian.Uint32(hdr[8:12])),
		Length:        int(binary.LittleEndian.Uint32(hdr[12:16])),
	}
	if ci.CaptureLength > maxRecordLen || ci.CaptureLength > ci.Length {
		return ci, nil, errors.Errorf(errors.KindInput, "bad record lengths caplen=%d len=%d", ci.CaptureLength, ci.Length)
	}

	data := make([]byte, ci.CaptureLength)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return ci, nil, err
	}
	return ci, data, nil
}
