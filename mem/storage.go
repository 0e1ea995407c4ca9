package mem

import "fmt"

// A Storage is the fixed-capacity backing memory of the model. It holds
// one data word per non-sentinel address and has no timing behavior.
type Storage struct {
	numEntries int
	words      []Data
}

// NewStorage creates a storage that backs numEntries addresses.
func NewStorage(numEntries int) *Storage {
	if numEntries <= 0 {
		panic("storage must back at least one address")
	}

	return &Storage{
		numEntries: numEntries,
		words:      make([]Data, numEntries),
	}
}

// NumEntries returns the number of addresses the storage backs.
func (s *Storage) NumEntries() int {
	return s.numEntries
}

// Read returns the word stored at addr.
func (s *Storage) Read(addr Addr) (Data, error) {
	if err := s.addrMustBeValid(addr); err != nil {
		return NoData, err
	}

	return s.words[int(addr)-1], nil
}

// Write stores a word at addr.
func (s *Storage) Write(addr Addr, data Data) error {
	if err := s.addrMustBeValid(addr); err != nil {
		return err
	}

	s.words[int(addr)-1] = data

	return nil
}

func (s *Storage) addrMustBeValid(addr Addr) error {
	if addr == NoAddr {
		return fmt.Errorf("accessing storage with the sentinel address")
	}

	if addr < NoAddr {
		return fmt.Errorf("accessing a negative address")
	}

	if int(addr) > s.numEntries {
		return fmt.Errorf("accessing address beyond the storage capacity")
	}

	return nil
}
