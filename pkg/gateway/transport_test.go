package gateway

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	testclock "k8s.io/utils/clock/testing"

	"github.com/clawbernetes/gateway/pkg/config"
	"github.com/clawbernetes/gateway/pkg/session"
)

func writeFrame(conn net.Conn, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(body)
	return err
}

var _ = Describe("serveNodeConn", func() {
	var (
		g          *Gateway
		clientConn net.Conn
	)

	BeforeEach(func() {
		var err error
		g, err = New(config.Default(), logr.Discard(), testclock.NewFakeClock(suiteNow))
		Expect(err).NotTo(HaveOccurred())

		var serverConn net.Conn
		clientConn, serverConn = net.Pipe()
		go g.serveNodeConn(serverConn)
	})

	AfterEach(func() {
		clientConn.Close()
	})

	It("tolerates malformed frames up to the threshold, then closes the session", func() {
		for i := 0; i < session.ParseFailureThreshold-1; i++ {
			Expect(writeFrame(clientConn, []byte("not valid json"))).To(Succeed(),
				"a malformed frame below the threshold must not close the session")
		}

		// The threshold-th consecutive parse failure must push the
		// session over RecordParseFailure's limit and close it.
		Expect(writeFrame(clientConn, []byte("still not json"))).To(Succeed())

		Eventually(func() error {
			return writeFrame(clientConn, []byte("probe"))
		}, time.Second, 10*time.Millisecond).Should(HaveOccurred(),
			"the session must close once the threshold-th malformed frame is recorded")
	})
})
