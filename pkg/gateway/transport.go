package gateway

import (
	"errors"
	"net"
	"time"

	"github.com/clawbernetes/gateway/pkg/session"
)

// outboundRetryDelay spaces retries of a transiently failed StartWorkload/
// StopWorkload write; three attempts at this cadence fits comfortably
// inside the default session drain timeout.
const outboundRetryDelay = 200 * time.Millisecond

// ServeNodes runs the accept loop for the node<->gateway wire protocol
// (spec.md §6): one goroutine per connection, each running its own
// read loop against the session Router until the peer disconnects or a
// Transport-class error (parse failures past threshold, a closed
// connection) ends the session. Accept errors from a closed listener end
// the loop cleanly; any other Accept error is returned.
func (g *Gateway) ServeNodes(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go g.serveNodeConn(conn)
	}
}

func (g *Gateway) serveNodeConn(conn net.Conn) {
	defer conn.Close()

	sess := g.Sessions.Open()
	log := g.Log.WithValues("session", sess.SessionID)
	log.Info("node connection opened")

	reader := session.NewFrameReader(conn)
	writer := session.NewFrameWriter(conn)
	sender := session.NewReliableSender(writer, 3, outboundRetryDelay)

	defer func() {
		closed, err := g.Sessions.Close(sess.SessionID)
		if err != nil {
			return
		}
		if closed.NodeID != nil {
			g.Dispatcher.UnregisterSender(*closed.NodeID)
			_ = g.Nodes.Unregister(*closed.NodeID)
		}
	}()

	for {
		env, err := reader.ReadEnvelope()
		if err != nil {
			var parseErr *session.ParseError
			if errors.As(err, &parseErr) {
				log.Info("discarding malformed frame", "error", err.Error())
				if g.Sessions.RecordParseFailure(sess.SessionID) {
					log.Info("closing session: parse failure threshold exceeded")
					return
				}
				continue
			}
			log.Info("node connection closed", "reason", err.Error())
			return
		}
		g.Sessions.Touch(sess.SessionID)
		g.Sessions.ResetParseFailures(sess.SessionID)

		reply, err := g.Router.Dispatch(sess, env)
		if err != nil {
			log.Error(err, "message handling failed", "tag", env.Tag)
			continue
		}
		if sess.NodeID != nil {
			g.Dispatcher.RegisterSender(*sess.NodeID, sender)
		}
		if reply != nil {
			if err := writer.WriteEnvelope(*reply); err != nil {
				log.Info("write failed, closing session", "error", err.Error())
				return
			}
		}
	}
}
