package studysync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/client"
	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/group"
	"github.com/fkhayef/studysync/internal/livestate"
	"github.com/fkhayef/studysync/internal/message"
	"github.com/fkhayef/studysync/internal/profile"
	"github.com/fkhayef/studysync/internal/resource"
	"github.com/fkhayef/studysync/internal/session"
	"github.com/fkhayef/studysync/internal/storage"
)

var errBackend = errors.New("backend unavailable")

type object struct {
	data []byte
	opts client.PutOptions
}

// backend is an in-memory stand-in for the API client
type backend struct {
	mu sync.Mutex

	profiles     map[uuid.UUID]*profile.Profile
	profileCalls int

	messages  []*message.Message
	resources map[uuid.UUID]*resource.Resource
	objects   map[string]object
	sessions  []*session.Session
	attendees map[uuid.UUID]*session.Attendance
	members   []*group.GroupMember

	failPut, failCreate, failDeleteRow, failDeleteObject, failRSVP bool
	rsvpWrites                                                     int
	me                                                             uuid.UUID
}

func newBackend() *backend {
	return &backend{
		profiles:  map[uuid.UUID]*profile.Profile{},
		resources: map[uuid.UUID]*resource.Resource{},
		objects:   map[string]object{},
		attendees: map[uuid.UUID]*session.Attendance{},
	}
}

func (b *backend) addProfile(name string) uuid.UUID {
	id := uuid.New()
	b.profiles[id] = &profile.Profile{ID: id, Name: name}
	return id
}

func (b *backend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profileCalls
}

func (b *backend) GetProfile(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profileCalls++
	p, ok := b.profiles[id]
	if !ok {
		return nil, errors.New("profile not found")
	}
	return p, nil
}

func (b *backend) ListMessages(_ context.Context, groupID uuid.UUID, _ int) ([]*message.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*message.Message
	for _, m := range b.messages {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (b *backend) SendMessage(_ context.Context, groupID uuid.UUID, content string) (*message.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := &message.Message{ID: uuid.New(), GroupID: groupID, UserID: b.me, Content: content, CreatedAt: time.Now()}
	b.messages = append(b.messages, m)
	return m, nil
}

func (b *backend) ListResources(_ context.Context, groupID uuid.UUID) ([]*resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*resource.Resource
	for _, r := range b.resources {
		if r.GroupID == groupID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *backend) CreateResource(_ context.Context, groupID uuid.UUID, req *resource.CreateResourceRequest) (*resource.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failCreate {
		return nil, errBackend
	}
	r := &resource.Resource{
		ID: uuid.New(), GroupID: groupID, UserID: b.me, Title: req.Title,
		FileURL: req.FileURL, FileType: req.FileType, Tags: req.Tags, CreatedAt: time.Now(),
	}
	b.resources[r.ID] = r
	return r, nil
}

func (b *backend) DeleteResource(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDeleteRow {
		return errBackend
	}
	delete(b.resources, id)
	return nil
}

func (b *backend) PutObject(_ context.Context, bucket, key string, body io.Reader, _ int64, opts client.PutOptions) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		return "", errBackend
	}
	if _, exists := b.objects[bucket+"/"+key]; exists && opts.NoOverwrite {
		return "", errors.New("duplicate")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.objects[bucket+"/"+key] = object{data: data, opts: opts}
	return storage.PublicURL("http://files.test", bucket, key), nil
}

func (b *backend) DeleteObject(_ context.Context, bucket, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDeleteObject {
		return errBackend
	}
	delete(b.objects, bucket+"/"+key)
	return nil
}

func (b *backend) objectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func (b *backend) ListSessions(_ context.Context, groupID uuid.UUID, _ bool) ([]*session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*session.Session(nil), b.sessions...), nil
}

func (b *backend) CreateSession(_ context.Context, groupID uuid.UUID, req *session.CreateSessionRequest) (*session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &session.Session{ID: uuid.New(), GroupID: groupID, HostID: b.me, Title: req.Title, StartTime: req.StartTime, EndTime: req.EndTime}
	b.sessions = append(b.sessions, s)
	return s, nil
}

func (b *backend) Attendees(_ context.Context, sessionID uuid.UUID) ([]*session.Attendance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*session.Attendance
	for _, a := range b.attendees {
		if a.SessionID == sessionID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

// SetAttendance upserts on (session, user) like the server does
func (b *backend) SetAttendance(_ context.Context, sessionID uuid.UUID, status session.AttendanceStatus) (*session.Attendance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rsvpWrites++
	if b.failRSVP {
		return nil, errBackend
	}
	a, ok := b.attendees[b.me]
	if !ok {
		a = &session.Attendance{ID: uuid.New(), SessionID: sessionID, UserID: b.me, CreatedAt: time.Now()}
		b.attendees[b.me] = a
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	copied := *a
	return &copied, nil
}

func (b *backend) GroupMembers(_ context.Context, groupID uuid.UUID) ([]*group.GroupMember, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*group.GroupMember(nil), b.members...), nil
}

// fakeFeed delivers published events synchronously to matching subscribers
type fakeFeed struct {
	mu   sync.Mutex
	subs map[*fakeSub]bool
}

type fakeSub struct {
	f       *fakeFeed
	key     feed.Key
	deliver func(feed.Event)
	done    chan struct{}
	once    sync.Once
}

func newFakeFeed() *fakeFeed { return &fakeFeed{subs: map[*fakeSub]bool{}} }

func (f *fakeFeed) Subscribe(_ context.Context, key feed.Key, deliver func(feed.Event)) (livestate.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSub{f: f, key: key, deliver: deliver, done: make(chan struct{})}
	f.subs[s] = true
	return s, nil
}

func (s *fakeSub) Close() error {
	s.f.mu.Lock()
	delete(s.f.subs, s)
	s.f.mu.Unlock()
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSub) Done() <-chan struct{} { return s.done }

func (f *fakeFeed) publish(ev feed.Event) {
	f.mu.Lock()
	var targets []*fakeSub
	for s := range f.subs {
		if ev.Type == feed.EventGap || s.key.Matches(ev) {
			targets = append(targets, s)
		}
	}
	f.mu.Unlock()
	for _, s := range targets {
		s.deliver(ev)
	}
}

func (f *fakeFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// authStub satisfies AuthClient
type authStub struct {
	mu        sync.Mutex
	current   *client.Session
	listeners []client.AuthListener
}

func (a *authStub) CurrentSession() *client.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *authStub) OnAuthStateChange(fn client.AuthListener) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
	idx := len(a.listeners) - 1
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.listeners[idx] = nil
	}
}

func (a *authStub) SignOut(context.Context) error {
	a.set(client.AuthSignedOut, nil)
	return nil
}

func (a *authStub) set(ev client.AuthEvent, s *client.Session) {
	a.mu.Lock()
	a.current = s
	listeners := append([]client.AuthListener(nil), a.listeners...)
	a.mu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(ev, s)
		}
	}
}

func rowEvent(table string, typ feed.EventType, row any) feed.Event {
	raw, err := json.Marshal(row)
	if err != nil {
		panic(err)
	}
	ev := feed.Event{Table: table, Type: typ, CommitTimestamp: time.Now()}
	if typ == feed.EventDelete {
		ev.Old = raw
	} else {
		ev.New = raw
	}
	return ev
}

func pdf(n int) *bytes.Reader { return bytes.NewReader(bytes.Repeat([]byte("x"), n)) }
