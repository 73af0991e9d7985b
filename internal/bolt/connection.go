package bolt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/corvid-graph/bolt-go-driver/internal/boltagent"
	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/frame"
	"github.com/corvid-graph/bolt-go-driver/internal/logging"
	"github.com/corvid-graph/bolt-go-driver/internal/racing"
	"github.com/corvid-graph/bolt-go-driver/internal/respqueue"
)

const (
	stateUnauthorized = iota
	stateReady
	stateStreaming
	stateTx
	stateStreamingTx
	stateFailed
	stateDead
)

const readTimeoutHintName = "connection.recv_timeout_seconds"
const telemetryHintName = "telemetry.enabled"

// Connection implements dbtype.Connection over one negotiated Bolt wire
// connection, generalizing the 3.0/4.x/5.x request/response differences
// behind version checks instead of one struct per protocol generation.
type Connection struct {
	state int
	major, minor int

	conn io.Closer

	chunker   *frame.Chunker
	dechunker *frame.Dechunker
	out       *outgoing
	in        *incoming
	queue     *respqueue.Queue

	serverName    string
	connId        string
	logId         string
	serverVersion string
	databaseName  string
	bookmark      string
	lastQid       int64
	err           error

	birthDate time.Time
	idleDate  time.Time

	streams openStreams
	txId    dbtype.TxHandle

	auth             map[string]any
	authManager      dbtype.TokenManager
	resetAuth        bool
	telemetryEnabled bool
	readTimeout      time.Duration

	log           logging.Logger
	boltLog       dbtype.BoltLogger
	errorListener dbtype.ConnectionErrorListener
}

// New wraps a version-negotiated socket. The handshake (frame.Negotiate)
// must already have run; major/minor is whatever it returned.
func New(serverName string, conn io.ReadWriteCloser, major, minor int, errorListener dbtype.ConnectionErrorListener, logger logging.Logger, boltLogger dbtype.BoltLogger) *Connection {
	now := time.Now()
	chunker := frame.NewChunker(racing.NewWriter(conn))
	dechunker := frame.NewDechunker(racing.NewReader(conn))
	return &Connection{
		state:         stateUnauthorized,
		major:         major,
		minor:         minor,
		conn:          conn,
		chunker:       chunker,
		dechunker:     dechunker,
		out:           newOutgoing(chunker),
		in:            newIncoming(dechunker),
		queue:         respqueue.New(),
		serverName:    serverName,
		birthDate:     now,
		idleDate:      now,
		lastQid:       -1,
		log:           logger,
		boltLog:       boltLogger,
		errorListener: errorListener,
		// logId gets a client-side correlation id immediately, so dial and
		// handshake failures (which happen before the server hands out a
		// connection_id) still log under a stable identifier. onHelloSuccess
		// replaces it with the server-assigned id once one exists.
		logId: uuid.NewString(),
	}
}

func (c *Connection) Version() dbtype.ProtocolVersion {
	return dbtype.ProtocolVersion{Major: c.major, Minor: c.minor}
}

func (c *Connection) ServerName() string    { return c.serverName }
func (c *Connection) ServerVersion() string { return c.serverVersion }
func (c *Connection) Bookmark() string      { return c.bookmark }
func (c *Connection) IsAlive() bool         { return c.state != stateDead }
func (c *Connection) HasFailed() bool       { return c.state == stateFailed }
func (c *Connection) Birthdate() time.Time  { return c.birthDate }
func (c *Connection) IdleDate() time.Time   { return c.idleDate }
func (c *Connection) Database() string      { return c.databaseName }
func (c *Connection) SelectDatabase(db string) { c.databaseName = db }
func (c *Connection) SetBoltLogger(l dbtype.BoltLogger) { c.boltLog = l }

func (c *Connection) setError(err error, fatal bool) {
	if err == nil {
		return
	}
	if c.err == nil {
		c.err = err
		c.state = stateFailed
	}
	if fatal {
		c.state = stateDead
	}
	if c.streams.curr != nil {
		c.streams.detach(nil, err)
		c.checkStreams()
	}
	if neo4jErr, ok := err.(*dbtype.Neo4jError); ok && neo4jErr.Classification() == dbtype.ClientError {
		c.log.Debugf("bolt", c.logId, "%s", err)
	} else {
		c.log.Error("bolt", c.logId, err)
	}
}

func (c *Connection) checkStreams() {
	if c.streams.num() > 0 {
		return
	}
	switch c.state {
	case stateStreamingTx:
		c.state = stateTx
	case stateStreaming:
		c.state = stateReady
	}
}

func (c *Connection) assertState(allowed ...int) error {
	if c.err != nil {
		return c.err
	}
	for _, a := range allowed {
		if c.state == a {
			return nil
		}
	}
	err := fmt.Errorf("bolt: invalid state %d, expected one of %v", c.state, allowed)
	c.log.Error("bolt", c.logId, err)
	return err
}

// Connect sends HELLO (and, on Bolt >= 4.1, a pipelined LOGON) to
// authenticate the connection.
func (c *Connection) Connect(ctx context.Context, auth *dbtype.ReAuthToken, userAgent string, routingContext map[string]string, notificationConfig dbtype.NotificationConfig) error {
	if err := c.assertState(stateUnauthorized); err != nil {
		return err
	}
	if err := checkReAuth(auth, c); err != nil {
		return err
	}
	token, err := auth.Manager.GetAuthToken(ctx)
	if err != nil {
		return err
	}
	c.auth = token.Tokens
	c.authManager = auth.Manager

	hello := map[string]any{"user_agent": userAgent}
	if routingContext != nil {
		hello["routing"] = routingContext
	}
	if c.major > 5 || (c.major == 5 && c.minor >= 3) {
		hello["bolt_agent"] = boltagent.New().ToMeta()
	}
	if c.major < 4 || (c.major == 4 && c.minor == 0) {
		for k, v := range token.Tokens {
			if _, exists := hello[k]; !exists {
				hello[k] = v
			}
		}
	}
	if err := checkNotificationFiltering(notificationConfig, c); err != nil {
		return err
	}
	notificationConfig.ToMeta(hello)

	c.enqueue(respqueue.Handler{OnSuccess: c.onHelloSuccess, OnIgnored: noOpIgnored, OnFailure: c.onFailure})
	if err := c.out.appendHello(hello); err != nil {
		return err
	}
	if c.supportsLogon() {
		c.enqueue(c.simpleHandler())
		if err := c.out.appendLogon(token.Tokens); err != nil {
			return err
		}
	}
	if err := c.sendAndReceiveAll(ctx); err != nil {
		return err
	}
	c.state = stateReady
	c.streams.reset()
	c.log.Infof("bolt", c.logId, "connected")
	return nil
}

func (c *Connection) supportsLogon() bool { return c.major > 4 || (c.major == 4 && c.minor > 0) }

func (c *Connection) onHelloSuccess(s *respqueue.Success) {
	id, _ := s.Meta["connection_id"].(string)
	server, _ := s.Meta["server"].(string)
	c.connId = id
	c.serverVersion = server
	c.logId = fmt.Sprintf("%s@%s", c.connId, c.serverName)
	if hints, ok := s.Meta["hints"].(map[string]any); ok {
		c.applyConfigurationHints(hints)
	}
}

func (c *Connection) applyConfigurationHints(hints map[string]any) {
	if v, ok := hints[readTimeoutHintName].(int64); ok && v > 0 {
		c.readTimeout = time.Duration(v) * time.Second
	}
	if v, ok := hints[telemetryHintName].(bool); ok {
		c.telemetryEnabled = v
	}
}

func (c *Connection) TxBegin(ctx context.Context, txConfig dbtype.TxConfig, syncMessages bool) (dbtype.TxHandle, error) {
	if c.state == stateStreaming {
		c.bufferStream(ctx)
		if c.err != nil {
			return 0, c.err
		}
	}
	c.streams.reset()
	if err := c.assertState(stateReady); err != nil {
		return 0, err
	}
	if err := checkNotificationFiltering(txConfig.NotificationConfig, c); err != nil {
		return 0, err
	}

	meta := txMeta(txConfig, c.databaseName, c.log, c.logId)
	c.enqueue(c.simpleHandler())
	if err := c.out.appendBegin(meta); err != nil {
		return 0, err
	}
	if syncMessages {
		if err := c.sendAndReceiveAll(ctx); err != nil {
			return 0, err
		}
	}
	if c.err != nil {
		return 0, c.err
	}
	c.state = stateTx
	c.txId = dbtype.TxHandle(time.Now().UnixNano())
	return c.txId, nil
}

func txMeta(tx dbtype.TxConfig, database string, log logging.Logger, logId string) map[string]any {
	meta := map[string]any{}
	if tx.Mode == dbtype.ReadMode {
		meta["mode"] = "r"
	}
	if len(tx.Bookmarks) > 0 {
		meta["bookmarks"] = tx.Bookmarks
	}
	ms := tx.Timeout.Milliseconds()
	if tx.Timeout.Nanoseconds()%int64(time.Millisecond) > 0 {
		ms++
		log.Infof("bolt", logId, "transaction timeout rounded up to the next millisecond")
	}
	if ms > 0 {
		meta["tx_timeout"] = ms
	}
	if len(tx.Meta) > 0 {
		meta["tx_metadata"] = tx.Meta
	}
	if database != dbtype.DefaultDatabase {
		meta["db"] = database
	}
	if tx.ImpersonatedUser != "" {
		meta["imp_user"] = tx.ImpersonatedUser
	}
	tx.NotificationConfig.ToMeta(meta)
	return meta
}

func (c *Connection) assertTxHandle(have, want dbtype.TxHandle) error {
	if have != want {
		return errors.New("bolt: stale transaction handle, the transaction has already ended")
	}
	return nil
}

func (c *Connection) TxCommit(ctx context.Context, tx dbtype.TxHandle) error {
	if err := c.assertTxHandle(c.txId, tx); err != nil {
		return err
	}
	c.discardAllStreams(ctx)
	if c.err != nil {
		return c.err
	}
	if err := c.assertState(stateTx); err != nil {
		return err
	}
	c.enqueue(respqueue.Handler{OnSuccess: c.onCommitSuccess, OnIgnored: noOpIgnored, OnFailure: c.onFailure})
	if err := c.out.appendCommit(); err != nil {
		return err
	}
	if err := c.sendAndReceiveAll(ctx); err != nil {
		return err
	}
	if c.err != nil {
		return c.err
	}
	c.state = stateReady
	c.txId = 0
	return nil
}

func (c *Connection) onCommitSuccess(s *respqueue.Success) {
	if bm, ok := s.Meta["bookmark"].(string); ok && bm != "" {
		c.bookmark = bm
	}
}

func (c *Connection) TxRollback(ctx context.Context, tx dbtype.TxHandle) error {
	if err := c.assertTxHandle(c.txId, tx); err != nil {
		return err
	}
	c.discardAllStreams(ctx)
	if c.err != nil {
		return c.err
	}
	if err := c.assertState(stateTx); err != nil {
		return err
	}
	c.enqueue(c.simpleHandler())
	if err := c.out.appendRollback(); err != nil {
		return err
	}
	if err := c.sendAndReceiveAll(ctx); err != nil {
		return err
	}
	if c.err != nil {
		return c.err
	}
	c.state = stateReady
	c.txId = 0
	return nil
}

func (c *Connection) run(ctx context.Context, cypher string, params map[string]any, rawFetchSize int, tx *dbtype.TxConfig) (*stream, error) {
	switch c.state {
	case stateStreaming:
		c.bufferStream(ctx)
	case stateStreamingTx:
		c.pauseStream(ctx)
	}
	if c.err != nil {
		return nil, c.err
	}
	if err := c.assertState(stateTx, stateReady, stateStreamingTx); err != nil {
		return nil, err
	}

	fetchSize := normalizeFetchSize(rawFetchSize)
	s := &stream{fetchSize: fetchSize}
	var meta map[string]any
	if tx != nil {
		meta = txMeta(*tx, c.databaseName, c.log, c.logId)
	}
	c.enqueue(respqueue.Handler{OnSuccess: c.runSuccessHandler(s), OnFailure: c.onFailure})
	if err := c.out.appendRun(cypher, params, meta); err != nil {
		return nil, err
	}
	c.enqueue(c.pullResponseHandler(s))
	if err := c.out.appendPullN(fetchSize); err != nil {
		return nil, err
	}
	if err := c.send(ctx); err != nil {
		return nil, err
	}
	for !s.attached {
		if err := c.receive(ctx); err != nil {
			return nil, err
		}
		if c.err != nil {
			return nil, c.err
		}
	}
	switch c.state {
	case stateReady:
		c.state = stateStreaming
	case stateTx:
		c.state = stateStreamingTx
	}
	return s, nil
}

func (c *Connection) runSuccessHandler(s *stream) func(*respqueue.Success) {
	return func(success *respqueue.Success) {
		s.attached = true
		if fields, ok := success.Meta["fields"].([]interface{}); ok {
			keys := make([]string, len(fields))
			for i, f := range fields {
				keys[i], _ = f.(string)
			}
			s.keys = keys
		}
		if qid, ok := success.Meta["qid"].(int64); ok {
			s.qid = qid
			c.lastQid = qid
		} else {
			s.qid = -1
		}
		if tfirst, ok := success.Meta["t_first"].(int64); ok {
			s.tfirst = tfirst
		}
		c.streams.attach(s)
	}
}

func (c *Connection) Run(ctx context.Context, cmd dbtype.Command, txConfig dbtype.TxConfig) (dbtype.StreamHandle, error) {
	if err := c.assertState(stateStreaming, stateReady); err != nil {
		return nil, err
	}
	if err := checkNotificationFiltering(txConfig.NotificationConfig, c); err != nil {
		return nil, err
	}
	s, err := c.run(ctx, cmd.Cypher, cmd.Params, cmd.FetchSize, &txConfig)
	if err != nil {
		return nil, err
	}
	return s.handle, nil
}

func (c *Connection) RunTx(ctx context.Context, tx dbtype.TxHandle, cmd dbtype.Command) (dbtype.StreamHandle, error) {
	if err := c.assertTxHandle(c.txId, tx); err != nil {
		return nil, err
	}
	s, err := c.run(ctx, cmd.Cypher, cmd.Params, cmd.FetchSize, nil)
	if err != nil {
		return nil, err
	}
	return s.handle, nil
}

func (c *Connection) Keys(handle dbtype.StreamHandle) ([]string, error) {
	s, err := c.streams.getUnsafe(handle)
	if err != nil {
		return nil, err
	}
	return s.keys, nil
}

func (c *Connection) Next(ctx context.Context, handle dbtype.StreamHandle) (*dbtype.Record, *dbtype.Summary, error) {
	s, err := c.streams.getUnsafe(handle)
	if err != nil {
		return nil, nil, err
	}
	for {
		if ok, rec, sum, nextErr := s.bufferedNext(); ok {
			return rec, sum, nextErr
		}
		if s.endOfBatch {
			c.appendPullForStream(s)
			if err := c.send(ctx); err != nil {
				return nil, nil, err
			}
			s.endOfBatch = false
		}
		if c.queue.IsEmpty() {
			return nil, nil, errors.New("bolt: no more responses expected but stream is not finished")
		}
		if err := c.receive(ctx); err != nil {
			return nil, nil, err
		}
		if c.err != nil {
			return nil, nil, c.err
		}
	}
}

func (c *Connection) appendPullForStream(s *stream) {
	switch c.state {
	case stateStreaming:
		c.enqueue(c.pullResponseHandler(s))
		c.out.appendPullN(s.fetchSize)
	case stateStreamingTx:
		c.enqueue(c.pullResponseHandler(s))
		if s.qid == c.lastQid {
			c.out.appendPullN(s.fetchSize)
		} else {
			c.out.appendPullNQid(s.fetchSize, s.qid)
		}
	}
}

func (c *Connection) Consume(ctx context.Context, handle dbtype.StreamHandle) (*dbtype.Summary, error) {
	s, err := c.streams.getUnsafe(handle)
	if err != nil {
		return nil, err
	}
	if s.sum != nil || s.err != nil {
		return s.sum, s.err
	}
	if err := c.streams.isSafe(s); err != nil {
		return nil, err
	}
	if err := c.assertState(stateStreaming, stateStreamingTx); err != nil {
		return nil, err
	}
	if s != c.streams.curr {
		c.pauseStream(ctx)
		if c.err != nil {
			return nil, c.err
		}
		c.resumeStream(ctx, s)
	}
	c.discardStream(ctx)
	return s.sum, s.err
}

func (c *Connection) Buffer(ctx context.Context, handle dbtype.StreamHandle) error {
	s, err := c.streams.getUnsafe(handle)
	if err != nil {
		return err
	}
	if s.sum != nil || s.err != nil {
		return s.err
	}
	if err := c.streams.isSafe(s); err != nil {
		return err
	}
	if err := c.assertState(stateStreaming, stateStreamingTx); err != nil {
		return err
	}
	if s != c.streams.curr {
		c.pauseStream(ctx)
		if c.err != nil {
			return c.err
		}
		c.resumeStream(ctx, s)
	}
	c.bufferStream(ctx)
	return s.err
}

func (c *Connection) bufferStream(ctx context.Context) {
	s := c.streams.curr
	if s == nil {
		return
	}
	for {
		if err := c.receive(ctx); err != nil || c.err != nil {
			return
		}
		if s.sum != nil || s.err != nil {
			return
		}
		if s.endOfBatch {
			s.fetchSize = -1
			c.appendPullForStream(s)
			if err := c.send(ctx); err != nil {
				return
			}
		}
	}
}

func (c *Connection) pauseStream(ctx context.Context) {
	s := c.streams.curr
	if s == nil {
		return
	}
	if err := c.receive(ctx); err != nil || c.err != nil {
		return
	}
	if s.sum != nil || s.err != nil {
		return
	}
	if s.endOfBatch {
		c.streams.pause()
	}
}

func (c *Connection) resumeStream(ctx context.Context, s *stream) {
	c.streams.resume(s)
	c.appendPullForStream(s)
	c.send(ctx)
}

func (c *Connection) discardStream(ctx context.Context) {
	if c.state != stateStreaming && c.state != stateStreamingTx {
		return
	}
	s := c.streams.curr
	if s == nil {
		return
	}
	s.discarding = true
	discarded := false
	for {
		if err := c.receive(ctx); err != nil || c.err != nil {
			return
		}
		if s.sum != nil || s.err != nil {
			return
		}
		if s.endOfBatch && discarded {
			c.streams.remove(s)
			c.checkStreams()
			return
		}
		discarded = true
		s.fetchSize = -1
		if c.state == stateStreamingTx && s.qid != c.lastQid {
			c.enqueue(c.discardResponseHandler(s))
			c.out.appendDiscardNQid(s.fetchSize, s.qid)
		} else {
			c.enqueue(c.discardResponseHandler(s))
			c.out.appendDiscardN(s.fetchSize)
		}
		if err := c.send(ctx); err != nil {
			return
		}
	}
}

func (c *Connection) discardAllStreams(ctx context.Context) {
	if c.state != stateStreaming && c.state != stateStreamingTx {
		return
	}
	c.discardStream(ctx)
	c.streams.reset()
	c.checkStreams()
}

func (c *Connection) pullResponseHandler(s *stream) respqueue.Handler {
	return respqueue.Handler{
		OnRecord: func(r *respqueue.Record) {
			if s.discarding {
				s.emptyRecords()
			} else {
				s.push(r.Values)
			}
			c.queue.PushFront(c.pullResponseHandler(s))
		},
		OnIgnored: func(*respqueue.Ignored) {
			s.err = errors.New("bolt: stream interrupted while pulling results")
			c.streams.remove(s)
			c.checkStreams()
		},
		OnSuccess: func(success *respqueue.Success) {
			if s.discarding {
				s.emptyRecords()
			}
			if hasMore, _ := success.Meta["has_more"].(bool); hasMore {
				s.endOfBatch = true
				return
			}
			sum := c.extractSummary(success, s)
			if sum.Bookmark != "" {
				c.bookmark = sum.Bookmark
			}
			s.sum = sum
			c.streams.remove(s)
			c.checkStreams()
		},
		OnFailure: func(ctx context.Context, failure *dbtype.Neo4jError) {
			s.err = failure
			c.onFailure(ctx, failure)
		},
	}
}

func (c *Connection) discardResponseHandler(s *stream) respqueue.Handler {
	return respqueue.Handler{
		OnIgnored: func(*respqueue.Ignored) {
			s.err = errors.New("bolt: stream interrupted while discarding results")
			c.streams.remove(s)
			c.checkStreams()
		},
		OnSuccess: func(success *respqueue.Success) {
			if hasMore, _ := success.Meta["has_more"].(bool); hasMore {
				s.endOfBatch = true
				return
			}
			sum := c.extractSummary(success, s)
			if sum.Bookmark != "" {
				c.bookmark = sum.Bookmark
			}
			s.sum = sum
			c.streams.remove(s)
			c.checkStreams()
		},
		OnFailure: func(ctx context.Context, failure *dbtype.Neo4jError) {
			s.err = failure
			c.onFailure(ctx, failure)
		},
	}
}

func (c *Connection) extractSummary(success *respqueue.Success, s *stream) *dbtype.Summary {
	sum := &dbtype.Summary{
		ServerName:    c.serverName,
		ServerVersion: c.serverVersion,
		Major:         c.major,
		Minor:         c.minor,
		TFirst:        s.tfirst,
		Database:      c.databaseName,
	}
	if bm, ok := success.Meta["bookmark"].(string); ok {
		sum.Bookmark = bm
	}
	if tlast, ok := success.Meta["t_last"].(int64); ok {
		sum.TLast = tlast
	}
	switch success.Meta["type"] {
	case "r":
		sum.StmntType = dbtype.StatementTypeRead
	case "w":
		sum.StmntType = dbtype.StatementTypeWrite
	case "rw":
		sum.StmntType = dbtype.StatementTypeReadWrite
	case "s":
		sum.StmntType = dbtype.StatementTypeSchemaWrite
	}
	if stats, ok := success.Meta["stats"].(map[string]interface{}); ok {
		counts := make(map[string]int, len(stats))
		for k, v := range stats {
			if n, ok := v.(int64); ok && n > 0 {
				counts[k] = int(n)
			}
		}
		sum.Counters = counts
	}
	return sum
}

func (c *Connection) GetRoutingTable(ctx context.Context, routingContext map[string]string, bookmarks []string, database, impersonatedUser string) (*dbtype.RoutingTable, error) {
	if err := c.assertState(stateReady); err != nil {
		return nil, err
	}
	extras := map[string]any{}
	if database != dbtype.DefaultDatabase {
		extras["db"] = database
	}
	if impersonatedUser != "" {
		extras["imp_user"] = impersonatedUser
	}
	var table *dbtype.RoutingTable
	c.enqueue(respqueue.Handler{
		OnSuccess: func(s *respqueue.Success) { table = c.parseRoutingTable(s.Meta, database) },
		OnIgnored: noOpIgnored,
		OnFailure: c.onFailure,
	})
	if c.major >= 5 || (c.major == 4 && c.minor >= 3) {
		if err := c.out.appendRoute(routingContext, bookmarks, extras); err != nil {
			return nil, err
		}
	} else {
		if err := c.out.appendRouteV43(routingContext, bookmarks, database); err != nil {
			return nil, err
		}
	}
	if err := c.sendAndReceiveAll(ctx); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	return table, nil
}

func (c *Connection) parseRoutingTable(meta map[string]any, database string) *dbtype.RoutingTable {
	rt, ok := meta["rt"].(map[string]any)
	if !ok {
		return nil
	}
	table := &dbtype.RoutingTable{Database: database}
	if ttl, ok := rt["ttl"].(int64); ok {
		table.TTL = time.Duration(ttl) * time.Second
	}
	if servers, ok := rt["servers"].([]interface{}); ok {
		for _, entry := range servers {
			m, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			addrsRaw, _ := m["addresses"].([]interface{})
			addrs := make([]string, 0, len(addrsRaw))
			for _, a := range addrsRaw {
				if s, ok := a.(string); ok {
					addrs = append(addrs, s)
				}
			}
			switch role {
			case "READ":
				table.Readers = addrs
			case "WRITE":
				table.Writers = addrs
			case "ROUTE":
				table.Routers = addrs
			}
		}
	}
	return table
}

func (c *Connection) Reset(ctx context.Context) {
	defer func() {
		c.bookmark = ""
		c.databaseName = dbtype.DefaultDatabase
		c.err = nil
		c.lastQid = -1
		c.streams.reset()
	}()
	if c.state == stateReady {
		return
	}
	c.ForceReset(ctx)
}

func (c *Connection) ForceReset(ctx context.Context) {
	if c.state == stateDead {
		return
	}
	c.err = nil
	if err := c.receiveAll(ctx); err != nil || c.err != nil {
		return
	}
	c.enqueue(respqueue.Handler{
		OnSuccess: func(*respqueue.Success) { c.state = stateReady },
		OnFailure: func(ctx context.Context, failure *dbtype.Neo4jError) {
			if c.errorListener != nil {
				_ = c.errorListener.OnNeo4jError(ctx, c, failure)
			}
			c.state = stateDead
		},
	})
	if err := c.out.appendReset(); err != nil {
		return
	}
	if err := c.send(ctx); err != nil || c.err != nil {
		return
	}
	c.receive(ctx)
}

func (c *Connection) ReAuth(ctx context.Context, auth *dbtype.ReAuthToken) error {
	if !c.supportsLogon() {
		return c.fallbackReAuth(ctx, auth)
	}
	return c.pipelinedReAuth(ctx, auth)
}

func (c *Connection) fallbackReAuth(ctx context.Context, auth *dbtype.ReAuthToken) error {
	if err := checkReAuth(auth, c); err != nil {
		return err
	}
	if c.resetAuth {
		c.Close(ctx)
		return nil
	}
	token, err := auth.Manager.GetAuthToken(ctx)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(c.auth, token.Tokens) {
		c.Close(ctx)
	}
	return nil
}

// pipelinedReAuth sends LOGOFF immediately followed by LOGON in the same
// flush, skipping an intervening RESET: the connection is never in a state
// that can receive a new request between the two, so there is nothing for
// a RESET to interrupt.
func (c *Connection) pipelinedReAuth(ctx context.Context, auth *dbtype.ReAuthToken) error {
	token, err := auth.Manager.GetAuthToken(ctx)
	if err != nil {
		return err
	}
	needsReAuth := c.resetAuth || !reflect.DeepEqual(c.auth, token.Tokens) || auth.ForceReAuth
	if !needsReAuth {
		return nil
	}
	c.enqueue(c.simpleHandler())
	if err := c.out.appendLogoff(); err != nil {
		return err
	}
	c.enqueue(c.simpleHandler())
	if err := c.out.appendLogon(token.Tokens); err != nil {
		return err
	}
	if err := c.send(ctx); err != nil {
		return err
	}
	c.auth = token.Tokens
	c.authManager = auth.Manager
	if auth.ForceReAuth {
		if err := c.receiveAll(ctx); err != nil {
			return err
		}
		return c.err
	}
	return nil
}

func (c *Connection) ResetAuth() { c.resetAuth = true }

func (c *Connection) GetCurrentAuth() (dbtype.TokenManager, dbtype.Token) {
	return c.authManager, dbtype.Token{Tokens: c.auth}
}

// Telemetry reports api's usage to the server on Bolt >= 5.4, if the
// server's HELLO hints enabled telemetry collection.
func (c *Connection) Telemetry(ctx context.Context, api int) {
	if !c.telemetryEnabled || c.major < 5 || (c.major == 5 && c.minor < 4) {
		return
	}
	c.enqueue(c.simpleHandler())
	c.out.appendTelemetry(api)
}

func (c *Connection) Close(ctx context.Context) {
	if c.state != stateDead {
		c.state = stateDead
		c.out.appendGoodbye()
		c.send(ctx)
	}
	if err := c.conn.Close(); err != nil {
		c.log.Warnf("bolt", c.serverName, "could not close underlying socket: %s", err)
	}
}

func (c *Connection) onFailure(ctx context.Context, failure *dbtype.Neo4jError) {
	var err error = failure
	if c.errorListener != nil {
		if cbErr := c.errorListener.OnNeo4jError(ctx, c, failure); cbErr != nil {
			err = fmt.Errorf("%w (original: %s)", cbErr, failure)
		}
	}
	c.setError(err, isFatalError(failure))
}

func isFatalError(err *dbtype.Neo4jError) bool {
	return err.Classification() == dbtype.DatabaseError
}

func noOpSuccess(*respqueue.Success) {}

func noOpIgnored(*respqueue.Ignored) {}

// simpleHandler is the common shape for a request whose SUCCESS carries
// nothing the caller needs and whose IGNORED (a prior request in the same
// batch already failed) is not itself an error worth surfacing again.
func (c *Connection) simpleHandler() respqueue.Handler {
	return respqueue.Handler{OnSuccess: noOpSuccess, OnIgnored: noOpIgnored, OnFailure: c.onFailure}
}

func (c *Connection) enqueue(h respqueue.Handler) { c.queue.Enqueue(h) }

func (c *Connection) send(ctx context.Context) error {
	if err := c.chunker.Flush(ctx); err != nil {
		c.onIoError(ctx, err)
		return c.err
	}
	return nil
}

func (c *Connection) sendAndReceiveAll(ctx context.Context) error {
	if err := c.send(ctx); err != nil {
		return err
	}
	return c.receiveAll(ctx)
}

func (c *Connection) receiveAll(ctx context.Context) error {
	for !c.queue.IsEmpty() {
		if err := c.receive(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) receive(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	msg, err := c.in.next(ctx)
	if err != nil {
		c.onIoError(ctx, err)
		return c.err
	}
	c.idleDate = time.Now()
	return c.queue.Dispatch(ctx, msg)
}

func (c *Connection) onIoError(ctx context.Context, err error) {
	if c.state != stateFailed && c.state != stateDead && c.errorListener != nil {
		c.errorListener.OnIOError(ctx, c, err)
	}
	c.setError(err, true)
}
