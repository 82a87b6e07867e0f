package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	coderws "github.com/coder/websocket"
	"github.com/gorilla/websocket"
)

// clientUpgrader accepts the inbound half of the bridge (the data-plane
// caller connecting to the proxy). The outbound half (proxy dialing
// the sandboxed function) uses a different library deliberately,
// mirroring how two distinct client/server websocket stacks get used
// on the two sides of a bridge.
var clientUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// bridgeWebSocket upgrades the inbound connection, dials the upstream
// function, and relays frames in both directions until either side
// closes. Each direction runs as its own goroutine and ends
// independently on transport closure or error — bridge tasks are not
// cancellation-propagating across directions, matching spec.md §5.
func (f *forwarder) bridgeWebSocket(w http.ResponseWriter, r *http.Request, authority string, log *slog.Logger) {
	clientConn, err := clientUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("proxy: client websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer clientConn.Close()

	upstreamConn, _, err := coderws.Dial(r.Context(), wsURL(authority, r), nil)
	if err != nil {
		log.Warn("proxy: upstream websocket dial failed", slog.String("authority", authority), slog.Any("error", err))
		_ = clientConn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "upstream unavailable"))
		return
	}
	defer upstreamConn.Close(coderws.StatusNormalClosure, "proxy closing")

	// Each direction gets its own context derived only from the request,
	// never from the other direction's goroutine: neither side's exit
	// may cancel the other's in-flight I/O (spec.md §5). A direction
	// that ends closes the connection it was writing to, so its peer's
	// blocked call unblocks via an ordinary closed-connection error
	// instead of a cancellation.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		clientToUpstream(r.Context(), clientConn, upstreamConn, log)
		_ = upstreamConn.Close(coderws.StatusNormalClosure, "peer direction closed")
	}()
	go func() {
		defer wg.Done()
		upstreamToClient(r.Context(), upstreamConn, clientConn, log)
		_ = clientConn.Close()
	}()
	wg.Wait()
}

// clientToUpstream forwards Text/Binary/Close frames from the
// inbound (gorilla) connection to the outbound (coder) connection.
// Ping/Pong are handled transparently by each library; raw control
// frames are not translated, matching the "Raw frames are dropped"
// rule from the grounding source.
func clientToUpstream(ctx context.Context, client *websocket.Conn, upstream *coderws.Conn, log *slog.Logger) {
	for {
		msgType, data, err := client.ReadMessage()
		if err != nil {
			return
		}
		var ut coderws.MessageType
		switch msgType {
		case websocket.TextMessage:
			ut = coderws.MessageText
		case websocket.BinaryMessage:
			ut = coderws.MessageBinary
		case websocket.CloseMessage:
			return
		default:
			continue
		}
		if err := upstream.Write(ctx, ut, data); err != nil {
			log.Warn("proxy: writing to upstream websocket failed", slog.Any("error", err))
			return
		}
	}
}

// upstreamToClient is the mirror of clientToUpstream.
func upstreamToClient(ctx context.Context, upstream *coderws.Conn, client *websocket.Conn, log *slog.Logger) {
	for {
		msgType, data, err := upstream.Read(ctx)
		if err != nil {
			return
		}
		var ct int
		switch msgType {
		case coderws.MessageText:
			ct = websocket.TextMessage
		case coderws.MessageBinary:
			ct = websocket.BinaryMessage
		default:
			continue
		}
		if err := client.WriteMessage(ct, data); err != nil {
			log.Warn("proxy: writing to client websocket failed", slog.Any("error", err))
			return
		}
	}
}
