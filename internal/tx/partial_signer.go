// Package tx implements PartialSigner (spec.md section 4.7): incremental
// signing of a versioned transaction by any signer whose pubkey appears
// among the transaction's required signers, plus the submit/confirm and
// transaction-size accounting the pipeline phases share.
package tx

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"ctcustody/internal/signer"
)

// SignerNotRequiredError is returned when signing with a signer.Signer
// whose pubkey is not among the transaction's required signers.
type SignerNotRequiredError struct {
	Pubkey solana.PublicKey
}

func (e *SignerNotRequiredError) Error() string {
	return fmt.Sprintf("tx: signer %s is not a required signer of this transaction", e.Pubkey)
}

// TooManySignaturesError is returned when the signatures vector carries
// more entries than required signers, and the extras are not all zero.
type TooManySignaturesError struct {
	Expected, Received int
}

func (e *TooManySignaturesError) Error() string {
	return fmt.Sprintf("tx: expected %d signatures, found %d with non-zero extras", e.Expected, e.Received)
}

// PartialSign signs transaction's message with s, writing the resulting
// signature at s's index among the first NumRequiredSignatures account
// keys, without re-serializing or disturbing any other signature slot
// (spec.md section 4.7).
func PartialSign(ctx context.Context, txn *solana.Transaction, s signer.Signer) error {
	required := int(txn.Message.Header.NumRequiredSignatures)

	index := -1
	for i := 0; i < required && i < len(txn.Message.AccountKeys); i++ {
		if txn.Message.AccountKeys[i].Equals(s.PublicKey()) {
			index = i
			break
		}
	}
	if index == -1 {
		return &SignerNotRequiredError{Pubkey: s.PublicKey()}
	}

	if err := normalizeSignatureSlots(txn, required); err != nil {
		return err
	}

	messageBytes, err := txn.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("tx: failed to serialize message for signing: %w", err)
	}

	sig, err := s.Sign(ctx, messageBytes)
	if err != nil {
		return fmt.Errorf("tx: signer failed to sign message: %w", err)
	}
	txn.Signatures[index] = sig
	return nil
}

// normalizeSignatureSlots extends a too-short signatures vector with
// zeroed entries, or truncates a too-long one whose extras are all
// zero, failing with TooManySignaturesError when extras are non-zero
// (spec.md section 4.7).
func normalizeSignatureSlots(txn *solana.Transaction, required int) error {
	switch {
	case len(txn.Signatures) < required:
		extended := make([]solana.Signature, required)
		copy(extended, txn.Signatures)
		txn.Signatures = extended
	case len(txn.Signatures) > required:
		var zero solana.Signature
		for _, extra := range txn.Signatures[required:] {
			if extra != zero {
				return &TooManySignaturesError{Expected: required, Received: len(txn.Signatures)}
			}
		}
		txn.Signatures = txn.Signatures[:required]
	}
	return nil
}
