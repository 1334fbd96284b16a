package util

import (
	"math/big"

	"github.com/google/uuid"
)

// uidNamespace scopes name-based UIDs to this tool.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("niftiforge"))

// UIDFromUUID renders u as a DICOM UID under the 2.25 root (ISO/IEC 9834-8).
func UIDFromUUID(u uuid.UUID) string {
	return "2.25." + new(big.Int).SetBytes(u[:]).String()
}

// NewUID returns a random 2.25 UID.
func NewUID() string {
	return UIDFromUUID(uuid.New())
}

// DeterministicUID returns the same 2.25 UID for the same name.
func DeterministicUID(name string) string {
	return UIDFromUUID(uuid.NewSHA1(uidNamespace, []byte(name)))
}
