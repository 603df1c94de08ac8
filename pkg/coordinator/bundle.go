package coordinator

import (
	"encoding/binary"
	"fmt"

	"github.com/emilsk/kasa/pkg/ledger"
	"github.com/emilsk/kasa/pkg/rules"
	"github.com/emilsk/kasa/pkg/sealer"
)

// The remote holds one object per user: the sealed ledger snapshot and the
// sealed rule table, length-prefixed and concatenated. Bundling both into a
// single versioned blob keeps them atomic — there is no window where one
// was pushed and the other was not.

func encodeState(l *ledger.Ledger, t *rules.Table, passphrase []byte, params sealer.Params) ([]byte, error) {
	ledgerCSV, err := l.MarshalCSV()
	if err != nil {
		return nil, err
	}
	rulesYAML, err := t.MarshalYAMLBytes()
	if err != nil {
		return nil, err
	}

	ledgerBlob, err := sealer.Seal(ledgerCSV, passphrase, params)
	if err != nil {
		return nil, err
	}
	rulesBlob, err := sealer.Seal(rulesYAML, passphrase, params)
	if err != nil {
		return nil, err
	}

	ledgerBytes := ledgerBlob.Encode()
	rulesBytes := rulesBlob.Encode()

	out := make([]byte, 0, 8+len(ledgerBytes)+len(rulesBytes))
	out = binary.BigEndian.AppendUint32(out, uint32(len(ledgerBytes)))
	out = append(out, ledgerBytes...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(rulesBytes)))
	out = append(out, rulesBytes...)
	return out, nil
}

func decodeState(data, passphrase []byte) (*ledger.Ledger, *rules.Table, error) {
	ledgerBytes, rest, err := readChunk(data)
	if err != nil {
		return nil, nil, err
	}
	rulesBytes, _, err := readChunk(rest)
	if err != nil {
		return nil, nil, err
	}

	ledgerBlob, err := sealer.Decode(ledgerBytes)
	if err != nil {
		return nil, nil, err
	}
	rulesBlob, err := sealer.Decode(rulesBytes)
	if err != nil {
		return nil, nil, err
	}

	ledgerCSV, err := sealer.Open(ledgerBlob, passphrase)
	if err != nil {
		return nil, nil, err
	}
	rulesYAML, err := sealer.Open(rulesBlob, passphrase)
	if err != nil {
		return nil, nil, err
	}

	l, err := ledger.UnmarshalCSV(ledgerCSV)
	if err != nil {
		return nil, nil, err
	}
	t, err := rules.UnmarshalYAMLBytes(rulesYAML)
	if err != nil {
		return nil, nil, err
	}
	return l, t, nil
}

func readChunk(data []byte) (chunk, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("state bundle truncated")
	}
	n := binary.BigEndian.Uint32(data[:4])
	if uint32(len(data)-4) < n {
		return nil, nil, fmt.Errorf("state bundle truncated")
	}
	return data[4 : 4+n], data[4+n:], nil
}
