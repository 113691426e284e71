package repositories

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"gmessagerie/domain"
	"gmessagerie/errors"
)

// UserRepository persists accounts in BadgerDB.
//
// Key families:
//   - "user:id:{id_padded}" holds the account row.
//   - "user:email:{email}" maps a unique email to its id.
//
// Ids are allocated from a badger sequence so they stay opaque integers
// like the rest of the system expects.
type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 32)
	if err != nil {
		return nil, err
	}
	return &UserRepository{db: db, seq: seq}, nil
}

// Close releases the id sequence lease.
func (r *UserRepository) Close() error {
	return r.seq.Release()
}

type diskUser struct {
	ID           domain.UserID `json:"id"`
	Email        string        `json:"email"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	PasswordHash string        `json:"password_hash"`
	CreatedAt    time.Time     `json:"created_at"`
}

func userKey(id domain.UserID) []byte {
	return []byte(fmt.Sprintf("user:id:%019d", id))
}

func emailKey(email string) []byte {
	return []byte("user:email:" + email)
}

// Create persists a new account with a freshly allocated id. The email
// index is written in the same transaction, which is what enforces
// email uniqueness.
func (r *UserRepository) Create(email, passwordHash, firstName, lastName string) (domain.UserID, error) {
	next, err := r.seq.Next()
	if err != nil {
		return 0, err
	}
	// Sequences start at zero; ids start at one.
	id := domain.UserID(next + 1)

	data, err := json.Marshal(diskUser{
		ID:           id,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return 0, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(email), []byte(strconv.FormatInt(int64(id), 10))); err != nil {
			return err
		}
		return txn.Set(userKey(id), data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *UserRepository) GetByEmail(email string) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return errors.ErrUserNotFound
		}
		var id int64
		if err := item.Value(func(val []byte) error {
			id, err = strconv.ParseInt(string(val), 10, 64)
			return err
		}); err != nil {
			return err
		}
		user, err = getUser(txn, domain.UserID(id))
		return err
	})
	return user, err
}

func (r *UserRepository) GetByID(id domain.UserID) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, err
}

// List returns every account except the given one, for the
// conversation sidebar.
func (r *UserRepository) List(excluding domain.UserID) ([]domain.User, error) {
	var users []domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:id:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskUser
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			if disk.ID == excluding {
				continue
			}
			users = append(users, toUser(disk))
		}
		return nil
	})
	return users, err
}

func getUser(txn *badger.Txn, id domain.UserID) (domain.User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return domain.User{}, errors.ErrUserNotFound
	}
	var disk diskUser
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &disk)
	}); err != nil {
		return domain.User{}, err
	}
	return toUser(disk), nil
}

func toUser(disk diskUser) domain.User {
	return domain.User{
		ID:           disk.ID,
		Email:        disk.Email,
		FirstName:    disk.FirstName,
		LastName:     disk.LastName,
		PasswordHash: disk.PasswordHash,
		CreatedAt:    disk.CreatedAt,
	}
}
