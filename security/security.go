// Package security implements the PDF Standard security handler:
// password authentication, per-object decryption for RC4 and AES
// documents, and encryption dictionary construction for protecting
// output files.
package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"

	"github.com/xdg-go/stringprep"

	"github.com/wudi/doctool/ir/raw"
)

// ErrWrongPassword is returned when a supplied password fails to
// authenticate against the encryption dictionary.
var ErrWrongPassword = errors.New("security: invalid password")

// passwordPadding is the 32-byte padding string from the Standard
// handler algorithms.
var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// Permissions mirrors the user-access flags in the /P entry.
type Permissions struct {
	Print    bool
	Modify   bool
	Copy     bool
	Annotate bool
}

// Value encodes the flags as the signed 32-bit /P integer. Reserved
// high bits are set per the Standard handler.
func (p Permissions) Value() int32 {
	v := int32(-4096) // bits 13..32 set, 1..12 clear
	if p.Print {
		v |= 1 << 2
	}
	if p.Modify {
		v |= 1 << 3
	}
	if p.Copy {
		v |= 1 << 4
	}
	if p.Annotate {
		v |= 1 << 5
	}
	return v
}

// DataClass distinguishes string and stream payloads; AES-256 R6 uses
// the same key for both but V4 crypt filters may differ.
type DataClass int

const (
	ClassString DataClass = iota
	ClassStream
)

// Handler decrypts (and for RC4 revisions encrypts) object payloads.
type Handler struct {
	v       int
	r       int
	length  int // key length in bytes
	perms   int32
	fileKey []byte
	useAES  bool
}

type dictParams struct {
	v, r, length    int
	perms           int32
	o, u            []byte
	oe, ue          []byte
	id              []byte
	useAES          bool
	encryptMetadata bool
}

func paramsFromDict(enc *raw.Dict, trailer *raw.Dict) (*dictParams, error) {
	if filter, _ := enc.GetName("Filter"); filter != "Standard" {
		return nil, fmt.Errorf("security: unsupported handler %q", filter)
	}
	p := &dictParams{v: 0, r: 0, length: 5, encryptMetadata: true}
	if v, ok := enc.GetInt("V"); ok {
		p.v = int(v)
	}
	if r, ok := enc.GetInt("R"); ok {
		p.r = int(r)
	}
	if l, ok := enc.GetInt("Length"); ok {
		p.length = int(l) / 8
	}
	if pv, ok := enc.GetInt("P"); ok {
		p.perms = int32(pv)
	}
	if em, ok := enc.GetBool("EncryptMetadata"); ok {
		p.encryptMetadata = em
	}
	p.o, _ = enc.GetString("O")
	p.u, _ = enc.GetString("U")
	p.oe, _ = enc.GetString("OE")
	p.ue, _ = enc.GetString("UE")
	if p.v == 4 || p.v == 5 {
		// Inspect the default stream crypt filter.
		if cf, ok := enc.GetDict("CF"); ok {
			if std, ok := cf.GetDict("StdCF"); ok {
				if cfm, _ := std.GetName("CFM"); cfm == "AESV2" || cfm == "AESV3" {
					p.useAES = true
				}
			}
		}
		if p.v == 5 {
			p.useAES = true
			p.length = 32
		}
	}
	if trailer != nil {
		if ids, ok := trailer.GetArray("ID"); ok && len(ids.Items) > 0 {
			if s, ok := ids.Items[0].(raw.String); ok {
				p.id = s.Bytes
			}
		}
	}
	return p, nil
}

// NewHandler builds a handler from the /Encrypt dictionary and the
// trailer (for /ID), authenticating the supplied password. It returns
// ErrWrongPassword when the password does not match.
func NewHandler(enc *raw.Dict, trailer *raw.Dict, password string) (*Handler, error) {
	p, err := paramsFromDict(enc, trailer)
	if err != nil {
		return nil, err
	}
	h := &Handler{v: p.v, r: p.r, length: p.length, perms: p.perms, useAES: p.useAES}
	switch p.r {
	case 2, 3, 4:
		if p.r == 2 {
			h.length = 5
		}
		key, err := authenticateClassic(p, password)
		if err != nil {
			return nil, err
		}
		h.fileKey = key
	case 5, 6:
		key, err := authenticateR6(p, password)
		if err != nil {
			return nil, err
		}
		h.fileKey = key
		h.useAES = true
	default:
		return nil, fmt.Errorf("security: unsupported revision %d", p.r)
	}
	return h, nil
}

// Permissions reports the document's user-access flags.
func (h *Handler) Permissions() Permissions {
	return Permissions{
		Print:    h.perms&(1<<2) != 0,
		Modify:   h.perms&(1<<3) != 0,
		Copy:     h.perms&(1<<4) != 0,
		Annotate: h.perms&(1<<5) != 0,
	}
}

func padPassword(password []byte) []byte {
	out := make([]byte, 32)
	n := copy(out, password)
	copy(out[n:], passwordPadding)
	return out
}

// deriveKey runs Algorithm 2 to compute the file key from a padded
// user password.
func deriveKey(p *dictParams, password []byte) []byte {
	hash := md5.New()
	hash.Write(padPassword(password))
	hash.Write(p.o[:min(32, len(p.o))])
	hash.Write([]byte{
		byte(p.perms), byte(p.perms >> 8), byte(p.perms >> 16), byte(p.perms >> 24),
	})
	hash.Write(p.id)
	if p.r >= 4 && !p.encryptMetadata {
		hash.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	sum := hash.Sum(nil)
	n := p.length
	if p.r == 2 {
		n = 5
	}
	if p.r >= 3 {
		for i := 0; i < 50; i++ {
			d := md5.Sum(sum[:n])
			sum = d[:]
		}
	}
	return sum[:n]
}

// computeU runs Algorithm 4/5 to derive the /U entry for a file key.
func computeU(p *dictParams, key []byte) []byte {
	if p.r == 2 {
		c, _ := rc4.NewCipher(key)
		out := make([]byte, 32)
		c.XORKeyStream(out, passwordPadding)
		return out
	}
	hash := md5.New()
	hash.Write(passwordPadding)
	hash.Write(p.id)
	sum := hash.Sum(nil)
	c, _ := rc4.NewCipher(key)
	c.XORKeyStream(sum, sum)
	for i := 1; i <= 19; i++ {
		k2 := make([]byte, len(key))
		for j := range key {
			k2[j] = key[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(k2)
		c.XORKeyStream(sum, sum)
	}
	out := make([]byte, 32)
	copy(out, sum)
	return out
}

// authenticateClassic tries the password as the user password, then as
// the owner password (Algorithm 7), for revisions 2..4.
func authenticateClassic(p *dictParams, password string) ([]byte, error) {
	if key, ok := tryUserPassword(p, []byte(password)); ok {
		return key, nil
	}
	// Owner path: decrypt /O with the owner key to recover the user
	// password, then authenticate that.
	ownerKey := ownerKeyFromPassword(p, []byte(password))
	userPwd := make([]byte, min(32, len(p.o)))
	copy(userPwd, p.o[:len(userPwd)])
	if p.r == 2 {
		c, _ := rc4.NewCipher(ownerKey)
		c.XORKeyStream(userPwd, userPwd)
	} else {
		for i := 19; i >= 0; i-- {
			k2 := make([]byte, len(ownerKey))
			for j := range ownerKey {
				k2[j] = ownerKey[j] ^ byte(i)
			}
			c, _ := rc4.NewCipher(k2)
			c.XORKeyStream(userPwd, userPwd)
		}
	}
	if key, ok := tryUserPassword(p, bytes.TrimRight(userPwd, "\x00")); ok {
		return key, nil
	}
	return nil, ErrWrongPassword
}

func tryUserPassword(p *dictParams, password []byte) ([]byte, bool) {
	key := deriveKey(p, password)
	u := computeU(p, key)
	n := 32
	if p.r >= 3 {
		// Only the first 16 bytes are significant for R3+.
		n = 16
	}
	if len(p.u) < n {
		return nil, false
	}
	if bytes.Equal(u[:n], p.u[:n]) {
		return key, true
	}
	return nil, false
}

func ownerKeyFromPassword(p *dictParams, password []byte) []byte {
	sum := md5.Sum(padPassword(password))
	digest := sum[:]
	if p.r >= 3 {
		for i := 0; i < 50; i++ {
			d := md5.Sum(digest)
			digest = d[:]
		}
	}
	n := p.length
	if p.r == 2 {
		n = 5
	}
	return digest[:n]
}

// saslPrep normalizes an AES-256 password per SASLprep, truncated to
// 127 bytes. Strings the profile rejects fall back to the raw bytes.
func saslPrep(password string) []byte {
	prepped, err := stringprep.SASLprep.Prepare(password)
	if err != nil {
		prepped = password
	}
	b := []byte(prepped)
	if len(b) > 127 {
		b = b[:127]
	}
	return b
}

// rev6Hash implements the iterative SHA-2 hash from Algorithm 2.B.
func rev6Hash(password, salt, udata []byte) []byte {
	h := sha256.New()
	h.Write(password)
	h.Write(salt)
	h.Write(udata)
	k := h.Sum(nil)
	for round := 0; ; round++ {
		k1 := make([]byte, 0, 64*(len(password)+len(k)+len(udata)))
		for i := 0; i < 64; i++ {
			k1 = append(k1, password...)
			k1 = append(k1, k...)
			k1 = append(k1, udata...)
		}
		block, _ := aes.NewCipher(k[:16])
		enc := cipher.NewCBCEncrypter(block, k[16:32])
		e := make([]byte, len(k1)-len(k1)%16)
		enc.CryptBlocks(e, k1[:len(e)])
		sum := 0
		for _, b := range e[:16] {
			sum += int(b)
		}
		switch sum % 3 {
		case 0:
			d := sha256.Sum256(e)
			k = d[:]
		case 1:
			d := sha512.Sum384(e)
			k = d[:]
		case 2:
			d := sha512.Sum512(e)
			k = d[:]
		}
		if round >= 63 && int(e[len(e)-1]) <= round-32 {
			break
		}
	}
	return k[:32]
}

// authenticateR6 validates an AES-256 password and recovers the file
// key from /UE or /OE.
func authenticateR6(p *dictParams, password string) ([]byte, error) {
	if len(p.u) < 48 || len(p.o) < 48 {
		return nil, fmt.Errorf("security: truncated U/O entries")
	}
	pwd := saslPrep(password)
	uHash, uValid, uKeySalt := p.u[:32], p.u[32:40], p.u[40:48]
	oHash, oValid, oKeySalt := p.o[:32], p.o[32:40], p.o[40:48]

	if got := rev6Hash(pwd, uValid, nil); bytes.Equal(got, uHash) {
		ik := rev6Hash(pwd, uKeySalt, nil)
		return decryptKeyBlob(ik, p.ue)
	}
	if got := rev6Hash(pwd, oValid, p.u[:48]); bytes.Equal(got, oHash) {
		ik := rev6Hash(pwd, oKeySalt, p.u[:48])
		return decryptKeyBlob(ik, p.oe)
	}
	return nil, ErrWrongPassword
}

func decryptKeyBlob(intermediate, blob []byte) ([]byte, error) {
	if len(blob) < 32 {
		return nil, fmt.Errorf("security: truncated UE/OE entry")
	}
	block, err := aes.NewCipher(intermediate)
	if err != nil {
		return nil, err
	}
	dec := cipher.NewCBCDecrypter(block, make([]byte, 16))
	key := make([]byte, 32)
	dec.CryptBlocks(key, blob[:32])
	return key, nil
}

// objectKey derives the per-object key for revisions 2..4.
func (h *Handler) objectKey(num, gen int) []byte {
	if h.r >= 5 {
		return h.fileKey
	}
	hash := md5.New()
	hash.Write(h.fileKey)
	hash.Write([]byte{byte(num), byte(num >> 8), byte(num >> 16)})
	hash.Write([]byte{byte(gen), byte(gen >> 8)})
	if h.useAES {
		hash.Write([]byte("sAlT"))
	}
	sum := hash.Sum(nil)
	n := len(h.fileKey) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

// Decrypt decrypts one object payload.
func (h *Handler) Decrypt(num, gen int, data []byte, _ DataClass) ([]byte, error) {
	key := h.objectKey(num, gen)
	if h.useAES {
		return aesDecrypt(key, data)
	}
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// Encrypt encrypts one object payload. Only RC4 revisions are written
// by the toolkit.
func (h *Handler) Encrypt(num, gen int, data []byte, _ DataClass) ([]byte, error) {
	if h.useAES {
		key := h.objectKey(num, gen)
		return aesEncrypt(key, data)
	}
	c, err := rc4.NewCipher(h.objectKey(num, gen))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

func aesDecrypt(key, data []byte) ([]byte, error) {
	if len(data) < 16 || len(data)%16 != 0 {
		return nil, fmt.Errorf("security: AES payload length %d not a block multiple", len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv, body := data[:16], data[16:]
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	if len(out) == 0 {
		return out, nil
	}
	pad := int(out[len(out)-1])
	if pad < 1 || pad > 16 || pad > len(out) {
		return nil, fmt.Errorf("security: bad AES padding")
	}
	return out[:len(out)-pad], nil
}

func aesEncrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	pad := 16 - len(data)%16
	body := make([]byte, len(data)+pad)
	copy(body, data)
	for i := len(data); i < len(body); i++ {
		body[i] = byte(pad)
	}
	out := make([]byte, 16+len(body))
	if _, err := rand.Read(out[:16]); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(block, out[:16]).CryptBlocks(out[16:], body)
	return out, nil
}

// BuildStandardEncryption constructs a V1/R2 RC4-40 encryption
// dictionary plus handler for writing a protected file. fileID is the
// first element of the trailer /ID array.
func BuildStandardEncryption(userPwd, ownerPwd string, perms Permissions, fileID []byte) (*raw.Dict, *Handler, error) {
	if ownerPwd == "" {
		ownerPwd = userPwd
	}
	permValue := perms.Value()

	// /O: RC4 of the padded user password with a key from the owner
	// password.
	oKeySum := md5.Sum(padPassword([]byte(ownerPwd)))
	oc, err := rc4.NewCipher(oKeySum[:5])
	if err != nil {
		return nil, nil, err
	}
	o := make([]byte, 32)
	oc.XORKeyStream(o, padPassword([]byte(userPwd)))

	p := &dictParams{v: 1, r: 2, length: 5, perms: permValue, o: o, id: fileID}
	key := deriveKey(p, []byte(userPwd))
	u := computeU(p, key)

	enc := raw.NewDict()
	enc.Set("Filter", raw.Name{Val: "Standard"})
	enc.Set("V", raw.Int(1))
	enc.Set("R", raw.Int(2))
	enc.Set("Length", raw.Int(40))
	enc.Set("P", raw.Int(int64(permValue)))
	enc.Set("O", raw.Str(o))
	enc.Set("U", raw.Str(u))

	h := &Handler{v: 1, r: 2, length: 5, perms: permValue, fileKey: key}
	return enc, h, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
