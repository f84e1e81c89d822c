package handlers

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/internal/bsonutil"
	"github.com/mongobridge/mongosrv/internal/mongoerr"
	"github.com/mongobridge/mongosrv/pkg/router"
	"github.com/mongobridge/mongosrv/pkg/scram"
)

func payloadBytes(cmd bsoncore.Document, key string) []byte {
	return bsonutil.PayloadBytes(cmd, key)
}

// SaslStart adapts scram.Authenticator.SaslStart to the wire command shape
// (spec §4.2/§4.3). On success, the router's SetAuthenticated callback is
// left untouched here — saslStart never completes authentication by
// itself.
func SaslStart(auth *scram.Authenticator) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		mechanism, _ := lookupString(cmd, "mechanism")
		payload := payloadBytes(cmd, "payload")
		authDB := ctx.DB

		result, err := auth.SaslStart(mechanism, authDB, payload)
		if err != nil {
			return mongoerr.Response(mongoerr.AuthenticationFailed, "Authentication failed."), nil
		}

		return okResponse(bson.M{
			"conversationId": result.ConversationID,
			"done":           false,
			"payload":        bson.Binary{Subtype: 0x00, Data: result.ServerFirstMessage},
		}), nil
	}
}

// SaslContinue adapts scram.Authenticator.SaslContinue. When the proof
// verifies and the conversation is done, it calls ctx.SetAuthenticated,
// which flips the session's authenticated flag, then discards the
// conversation (spec §4.3: "on that transition, the conversation is
// discarded").
func SaslContinue(auth *scram.Authenticator) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		conversationID := int32(lookupInt64(cmd, "conversationId", 0))
		payload := payloadBytes(cmd, "payload")

		result, err := auth.SaslContinue(conversationID, payload)
		if err != nil {
			return mongoerr.Response(mongoerr.AuthenticationFailed, "Authentication failed."), nil
		}

		if result.Done {
			if username, authDB, ok := auth.ConversationPrincipal(conversationID); ok {
				if ctx.SetAuthenticated != nil {
					ctx.SetAuthenticated(username, authDB)
				}
				auth.Discard(conversationID)
			}
		}

		return okResponse(bson.M{
			"conversationId": conversationID,
			"done":           result.Done,
			"payload":        bson.Binary{Subtype: 0x00, Data: result.ServerFinalMessage},
		}), nil
	}
}

// Authenticate steers legacy clients toward SCRAM (spec §6.2).
func Authenticate() router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return mongoerr.Response(mongoerr.AuthenticationFailed, "use SCRAM-SHA-256 via saslStart/saslContinue"), nil
	}
}

// Logout clears session.authenticated (spec §6.2).
func Logout() router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		ctx.Session.Logout()
		return okResponse(nil), nil
	}
}
