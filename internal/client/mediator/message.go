package mediator

import (
	"errors"

	"github.com/darusc/Passknight/internal/client/remote"
	"github.com/darusc/Passknight/internal/models"
)

// Message turns an error returned by the mediator, the debouncer or the
// remote store into the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, models.ErrEmptyName):
		return "Name must not be empty"
	case errors.Is(err, models.ErrDuplicateName):
		return "There is already an item with this name"
	case errors.Is(err, ErrOperationPending):
		return "Another change to this item is still in progress"
	case errors.Is(err, remote.ErrSignedOut):
		return "The vault is locked"
	}

	var cerr *models.CryptoError
	if errors.As(err, &cerr) {
		if cerr.Op == "decrypt" {
			return "The item could not be decrypted"
		}
		return "The item could not be encrypted"
	}

	var rerr *remote.RemoteError
	if errors.As(err, &rerr) {
		switch rerr.Op {
		case "add item":
			return "There was an error adding the new item"
		case "edit item":
			return "There was an error updating the item"
		case "delete item":
			return "There was an error deleting the item"
		case "fetch vault":
			return "Error when fetching the vault"
		case "update history":
			return "There was an error saving the generator history"
		}
	}
	return "Something went wrong: " + err.Error()
}
