package redisstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"

	"github.com/MrEthical07/authcore/credential"
)

const recordVersion1 = 1

var errRecordCorrupt = errors.New("credential record corrupt")

func encodeRecord(rec credential.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)

	w := &recordWriter{buf: &buf}
	w.str(rec.ID)
	w.str(rec.Email)
	w.str(rec.PasswordHash)
	w.str(rec.Role)
	w.str(rec.ClubID)
	w.flag(rec.EmailVerified)
	w.flag(rec.TOTPEnabled)
	w.str(rec.TOTPSecret)
	w.str(rec.TOTPPendingSecret)
	w.int(rec.TOTPLastStep)
	w.flag(rec.EmailOTPEnabled)
	w.str(rec.EmailOTPHash)
	w.time(rec.EmailOTPExpiresAt)
	w.set(rec.RecoveryCodes)
	w.str(rec.EmailVerificationHash)
	w.time(rec.EmailVerificationExpiresAt)
	w.str(rec.PasswordResetHash)
	w.time(rec.PasswordResetExpiresAt)
	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (credential.Record, error) {
	reader := bytes.NewReader(data)
	version, err := reader.ReadByte()
	if err != nil {
		return credential.Record{}, errRecordCorrupt
	}
	if version != recordVersion1 {
		return credential.Record{}, errors.New("unsupported credential record version")
	}

	r := &recordReader{r: reader}
	rec := credential.Record{
		ID:                         r.str(),
		Email:                      r.str(),
		PasswordHash:               r.str(),
		Role:                       r.str(),
		ClubID:                     r.str(),
		EmailVerified:              r.flag(),
		TOTPEnabled:                r.flag(),
		TOTPSecret:                 r.str(),
		TOTPPendingSecret:          r.str(),
		TOTPLastStep:               r.int(),
		EmailOTPEnabled:            r.flag(),
		EmailOTPHash:               r.str(),
		EmailOTPExpiresAt:          r.time(),
		RecoveryCodes:              r.set(),
		EmailVerificationHash:      r.str(),
		EmailVerificationExpiresAt: r.time(),
		PasswordResetHash:          r.str(),
		PasswordResetExpiresAt:     r.time(),
	}
	if r.err != nil {
		return credential.Record{}, errRecordCorrupt
	}
	return rec, nil
}

type recordWriter struct {
	buf *bytes.Buffer
	err error
}

func (w *recordWriter) str(s string) {
	if w.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		w.err = errors.New("credential field length exceeded")
		return
	}
	w.err = binary.Write(w.buf, binary.BigEndian, uint16(len(s)))
	w.buf.WriteString(s)
}

func (w *recordWriter) flag(b bool) {
	if b {
		w.buf.WriteByte(1)
		return
	}
	w.buf.WriteByte(0)
}

func (w *recordWriter) int(n int64) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.buf, binary.BigEndian, n)
}

func (w *recordWriter) time(t time.Time) {
	if t.IsZero() {
		w.int(0)
		return
	}
	w.int(t.UnixNano())
}

func (w *recordWriter) set(values []string) {
	if w.err != nil {
		return
	}
	if len(values) > math.MaxUint16 {
		w.err = errors.New("credential set size exceeded")
		return
	}
	w.err = binary.Write(w.buf, binary.BigEndian, uint16(len(values)))
	for _, v := range values {
		w.str(v)
	}
}

type recordReader struct {
	r   *bytes.Reader
	err error
}

func (r *recordReader) str() string {
	if r.err != nil {
		return ""
	}
	var n uint16
	if r.err = binary.Read(r.r, binary.BigEndian, &n); r.err != nil {
		return ""
	}
	b := make([]byte, n)
	if _, r.err = io.ReadFull(r.r, b); r.err != nil {
		return ""
	}
	return string(b)
}

func (r *recordReader) flag() bool {
	if r.err != nil {
		return false
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.err = err
		return false
	}
	return b == 1
}

func (r *recordReader) int() int64 {
	if r.err != nil {
		return 0
	}
	var n int64
	r.err = binary.Read(r.r, binary.BigEndian, &n)
	return n
}

func (r *recordReader) time() time.Time {
	n := r.int()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func (r *recordReader) set() []string {
	if r.err != nil {
		return nil
	}
	var n uint16
	if r.err = binary.Read(r.r, binary.BigEndian, &n); r.err != nil || n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		out = append(out, r.str())
	}
	return out
}
