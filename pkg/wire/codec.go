package wire

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/wiremessage"
)

// ErrMultipleCommandSections violates spec §3.1: exactly one kind-0 section
// is allowed per OP_MSG.
var ErrMultipleCommandSections = errors.New("wire: OP_MSG carries more than one command section")

// ErrDuplicateSequenceIdentifier violates spec §3.1: kind-1 identifiers
// must be unique within a message.
var ErrDuplicateSequenceIdentifier = errors.New("wire: duplicate OP_MSG document sequence identifier")

// Extract pulls the target database, command document, command name, and
// any document sequences out of a parsed Message.
func Extract(msg *Message) (*Extracted, error) {
	switch msg.Header.OpCode {
	case wiremessage.OpMsg:
		return extractOpMsg(msg.Body)
	case wiremessage.OpQuery:
		return extractOpQuery(msg.Body)
	default:
		return nil, fmt.Errorf("%w: opcode %d", ErrUnsupportedOpCode, msg.Header.OpCode)
	}
}

func extractOpMsg(body []byte) (*Extracted, error) {
	flags, rem, ok := wiremessage.ReadMsgFlags(body)
	if !ok {
		return nil, fmt.Errorf("%w: missing OP_MSG flags", ErrMalformedHeader)
	}
	checksumPresent := flags&wiremessage.ChecksumPresent == wiremessage.ChecksumPresent

	var commandDoc bsoncore.Document
	haveCommand := false
	sequences := make(map[string][]bsoncore.Document)

	for len(rem) > 0 {
		if checksumPresent && len(rem) == 4 {
			break
		}
		var stype wiremessage.SectionType
		stype, rem, ok = wiremessage.ReadMsgSectionType(rem)
		if !ok {
			return nil, fmt.Errorf("%w: missing section type", ErrMalformedHeader)
		}
		switch stype {
		case wiremessage.SingleDocument:
			var doc bsoncore.Document
			doc, rem, ok = wiremessage.ReadMsgSectionSingleDocument(rem)
			if !ok {
				return nil, fmt.Errorf("%w: truncated kind-0 section", ErrMalformedHeader)
			}
			if haveCommand {
				return nil, ErrMultipleCommandSections
			}
			commandDoc = doc
			haveCommand = true
		case wiremessage.DocumentSequence:
			var identifier string
			var docs []bsoncore.Document
			identifier, docs, rem, ok = wiremessage.ReadMsgSectionDocumentSequence(rem)
			if !ok {
				return nil, fmt.Errorf("%w: truncated kind-1 section", ErrMalformedHeader)
			}
			if _, dup := sequences[identifier]; dup {
				return nil, ErrDuplicateSequenceIdentifier
			}
			sequences[identifier] = docs
		default:
			return nil, fmt.Errorf("%w: unknown section type %d", ErrMalformedHeader, stype)
		}
	}
	if !haveCommand {
		return nil, fmt.Errorf("%w: OP_MSG carries no command section", ErrMalformedHeader)
	}

	name, db, err := commandNameAndDB(commandDoc)
	if err != nil {
		return nil, err
	}

	return &Extracted{
		DB:                db,
		CommandName:       name,
		Command:           commandDoc,
		DocumentSequences: sequences,
	}, nil
}

func extractOpQuery(body []byte) (*Extracted, error) {
	_, rem, ok := wiremessage.ReadQueryFlags(body)
	if !ok {
		return nil, fmt.Errorf("%w: missing OP_QUERY flags", ErrMalformedHeader)
	}
	fullCollectionName, rem, ok := wiremessage.ReadQueryFullCollectionName(rem)
	if !ok {
		return nil, fmt.Errorf("%w: missing full collection name", ErrMalformedHeader)
	}
	_, rem, ok = wiremessage.ReadQueryNumberToSkip(rem)
	if !ok {
		return nil, fmt.Errorf("%w: missing numberToSkip", ErrMalformedHeader)
	}
	_, rem, ok = wiremessage.ReadQueryNumberToReturn(rem)
	if !ok {
		return nil, fmt.Errorf("%w: missing numberToReturn", ErrMalformedHeader)
	}
	query, _, ok := wiremessage.ReadQueryQuery(rem)
	if !ok {
		return nil, fmt.Errorf("%w: missing query document", ErrMalformedHeader)
	}

	db := fullCollectionName
	if idx := strings.IndexByte(fullCollectionName, '.'); idx >= 0 {
		db = fullCollectionName[:idx]
	}

	name, _, err := commandNameAndDB(query)
	if err != nil {
		return nil, err
	}
	return &Extracted{
		DB:                db,
		CommandName:       name,
		Command:           query,
		DocumentSequences: map[string][]bsoncore.Document{},
	}, nil
}

// commandNameAndDB implements spec §4.1: the command name is the first
// non-"$"-prefixed key of the top-level command document; "$db" carries
// the target database.
func commandNameAndDB(doc bsoncore.Document) (name, db string, err error) {
	elements, err := doc.Elements()
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid command document: %v", ErrMalformedHeader, err)
	}
	for _, elem := range elements {
		key := elem.Key()
		if key == "$db" {
			if s, ok := elem.Value().StringValueOK(); ok {
				db = s
			}
			continue
		}
		if name == "" && !strings.HasPrefix(key, "$") {
			name = key
		}
	}
	if name == "" {
		return "", "", fmt.Errorf("%w: command document has no command name", ErrMalformedHeader)
	}
	return name, db, nil
}
