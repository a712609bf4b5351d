package chainclient

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"
)

// ComputeBudgetProgramID is the program that sets per-transaction compute
// limits and priority pricing.
const ComputeBudgetProgramID = "ComputeBudget111111111111111111111111111111"

// SvmAccountMeta names one account an instruction touches.
type SvmAccountMeta struct {
	Pubkey   string
	Signer   bool
	Writable bool
}

// SvmInstruction is one program invocation inside a transaction.
type SvmInstruction struct {
	ProgramID string
	Accounts  []SvmAccountMeta
	Data      []byte
}

// ComputeUnitLimitInstruction caps the transaction's compute units.
func ComputeUnitLimitInstruction(units uint32) SvmInstruction {
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], units)
	return SvmInstruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// ComputeUnitPriceInstruction sets the priority fee in micro-lamports per
// compute unit.
func ComputeUnitPriceInstruction(microLamports uint64) SvmInstruction {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return SvmInstruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// BuildSvmMessage serializes a single-signer legacy message. The fee payer is
// the only signer; account keys are ordered signer, writable, readonly with
// program ids last, as the wire format requires.
func BuildSvmMessage(feePayer, blockhash string, instructions []SvmInstruction) ([]byte, error) {
	type keyInfo struct {
		writable bool
		program  bool
	}
	keys := map[string]*keyInfo{feePayer: {writable: true}}
	order := []string{feePayer}

	note := func(pubkey string, writable, program bool) {
		info, seen := keys[pubkey]
		if !seen {
			info = &keyInfo{}
			keys[pubkey] = info
			order = append(order, pubkey)
		}
		info.writable = info.writable || writable
		info.program = info.program || program
	}

	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			note(meta.Pubkey, meta.Writable, false)
		}
		note(ix.ProgramID, false, true)
	}

	// Signer first, then writable non-signers, then readonly, programs last.
	var ordered []string
	ordered = append(ordered, feePayer)
	for _, pubkey := range order {
		if pubkey != feePayer && keys[pubkey].writable {
			ordered = append(ordered, pubkey)
		}
	}
	for _, pubkey := range order {
		if pubkey != feePayer && !keys[pubkey].writable && !keys[pubkey].program {
			ordered = append(ordered, pubkey)
		}
	}
	for _, pubkey := range order {
		if keys[pubkey].program && !keys[pubkey].writable {
			ordered = append(ordered, pubkey)
		}
	}

	index := make(map[string]int, len(ordered))
	for i, pubkey := range ordered {
		index[pubkey] = i
	}

	readonlyUnsigned := 0
	for _, pubkey := range ordered[1:] {
		if !keys[pubkey].writable {
			readonlyUnsigned++
		}
	}

	var msg bytes.Buffer
	msg.WriteByte(1) // one required signature
	msg.WriteByte(0) // no readonly signed accounts
	msg.WriteByte(byte(readonlyUnsigned))

	writeCompactU16(&msg, len(ordered))
	for _, pubkey := range ordered {
		raw, err := Base58Decode(pubkey)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("invalid account key: %s", pubkey)
		}
		msg.Write(raw)
	}

	hash, err := Base58Decode(blockhash)
	if err != nil || len(hash) != 32 {
		return nil, fmt.Errorf("invalid blockhash: %s", blockhash)
	}
	msg.Write(hash)

	writeCompactU16(&msg, len(instructions))
	for _, ix := range instructions {
		msg.WriteByte(byte(index[ix.ProgramID]))
		writeCompactU16(&msg, len(ix.Accounts))
		for _, meta := range ix.Accounts {
			msg.WriteByte(byte(index[meta.Pubkey]))
		}
		writeCompactU16(&msg, len(ix.Data))
		msg.Write(ix.Data)
	}

	return msg.Bytes(), nil
}

// EncodeSvmTransaction assembles the signed wire transaction and returns it
// base64 encoded for sendTransaction.
func EncodeSvmTransaction(signature, message []byte) string {
	var tx bytes.Buffer
	writeCompactU16(&tx, 1)
	tx.Write(signature)
	tx.Write(message)
	return base64.StdEncoding.EncodeToString(tx.Bytes())
}

// writeCompactU16 appends a shortvec-encoded length.
func writeCompactU16(buf *bytes.Buffer, value int) {
	v := uint16(value)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Index = func() [128]int8 {
	var table [128]int8
	for i := range table {
		table[i] = -1
	}
	for i, c := range base58Alphabet {
		table[c] = int8(i)
	}
	return table
}()

// Base58Encode renders bytes in the alphabet pubkeys and signatures use.
func Base58Encode(input []byte) string {
	zeros := 0
	for zeros < len(input) && input[zeros] == 0 {
		zeros++
	}

	num := new(big.Int).SetBytes(input)
	radix := big.NewInt(58)
	mod := new(big.Int)
	var out []byte
	for num.Sign() > 0 {
		num.DivMod(num, radix, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		out = append(out, base58Alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// Base58Decode parses a base58 string back into bytes.
func Base58Decode(input string) ([]byte, error) {
	zeros := 0
	for zeros < len(input) && input[zeros] == base58Alphabet[0] {
		zeros++
	}

	num := big.NewInt(0)
	radix := big.NewInt(58)
	for _, c := range input {
		if c >= 128 || base58Index[c] < 0 {
			return nil, fmt.Errorf("invalid base58 character %q", c)
		}
		num.Mul(num, radix)
		num.Add(num, big.NewInt(int64(base58Index[c])))
	}

	decoded := num.Bytes()
	out := make([]byte, zeros+len(decoded))
	copy(out[zeros:], decoded)
	return out, nil
}
