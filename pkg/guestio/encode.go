package guestio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// writer accumulates a canonical little-endian encoding. Every variable
// length field (string, slice) is prefixed with a uint64 length, matching
// the "field order fixed, integers little-endian fixed-width" rule in
// spec §4.2.
type writer struct {
	buf bytes.Buffer
}

func newWriter() *writer {
	w := &writer{}
	w.buf.WriteByte(byte(SchemaVersion))
	return w
}

func (w *writer) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) bytesField(b []byte) {
	w.u64(uint64(len(b)))
	w.buf.Write(b)
}

func (w *writer) str(s string) {
	w.bytesField([]byte(s))
}

func (w *writer) header(h Header) {
	w.u64(h.Number)
	w.str(h.BlockHash)
	w.str(h.ParentHash)
}

func (w *writer) headers(hs []Header) {
	w.u64(uint64(len(hs)))
	for _, h := range hs {
		w.header(h)
	}
}

func (w *writer) strs(ss []string) {
	w.u64(uint64(len(ss)))
	for _, s := range ss {
		w.str(s)
	}
}

func (w *writer) batchProof(p BatchProof) {
	w.bytesField(p.Receipt)
	w.str(p.ImageID)
	w.str(p.MethodID)
}

func (w *writer) batchProofs(ps []BatchProof) {
	w.u64(uint64(len(ps)))
	for _, p := range ps {
		w.batchProof(p)
	}
}

func (w *writer) mmrInput(m MMRInput) {
	w.strs(m.InitialPeaks)
	w.u64(m.ElementsCount)
	w.u64(m.LeavesCount)
	w.strs(m.NewElements)
	w.batchProofs(m.PreviousProofs)
}

func (w *writer) bytes() []byte {
	return w.buf.Bytes()
}

// EncodeMMRInput produces the canonical encoding of m.
func EncodeMMRInput(m MMRInput) []byte {
	w := newWriter()
	w.mmrInput(m)
	return w.bytes()
}

// EncodeCombinedInput produces the canonical encoding of c, the exact bytes
// the Prover consumes (spec §4.2).
func EncodeCombinedInput(c CombinedInput) []byte {
	w := newWriter()
	w.headers(c.Headers)
	w.mmrInput(c.MMRInput)
	if c.SkipProofVerification {
		w.u8(1)
	} else {
		w.u8(0)
	}
	return w.bytes()
}

// EncodeGuestOutput produces the canonical encoding of o, the format a
// journal must decode back to bit-exactly.
func EncodeGuestOutput(o GuestOutput) []byte {
	w := newWriter()
	w.strs(o.FinalPeaks)
	w.u64(o.ElementsCount)
	w.u64(o.LeavesCount)
	w.u64(uint64(len(o.AppendResults)))
	for _, a := range o.AppendResults {
		w.str(a.RootHash)
		w.u64(a.ElementIndex)
	}
	w.str(o.RootHash)
	w.u64(uint64(len(o.AllHashes)))
	for _, h := range o.AllHashes {
		w.u64(h.Index)
		w.str(h.Hash)
	}
	return w.bytes()
}

func (w *writer) guestProof(p GuestProof) {
	w.u64(p.ElementIndex)
	w.str(p.ElementHash)
	w.strs(p.SiblingsHashes)
	w.strs(p.PeaksHashes)
	w.u64(p.ElementsCount)
}

// EncodeBlocksValidityInput produces the canonical encoding of b.
func EncodeBlocksValidityInput(b BlocksValidityInput) []byte {
	w := newWriter()
	w.u64(b.ChainID)
	w.headers(b.Headers)
	w.mmrInput(b.MMRInput)
	w.u64(uint64(len(b.Proofs)))
	for _, p := range b.Proofs {
		w.guestProof(p)
	}
	return w.bytes()
}

// errSchemaVersion is returned by decoders when the leading version byte
// does not match the version this build understands.
func errSchemaVersion(got uint8) error {
	return fmt.Errorf("%w: got version %d, want %d", ErrSchemaVersion, got, SchemaVersion)
}
