// Package memory はリポジトリインターフェースのインメモリ実装を提供する。
// PostgreSQLスキーマと同じ一意制約・外部キー制約を再現し、
// サービス層の同時実行テストとHTTPルーターのテストで使う。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/guildhall/internal/model"
	"github.com/hitoshi/guildhall/internal/rbac"
	"github.com/hitoshi/guildhall/internal/repository"
)

// Store は全テーブルを1つのミューテックスで保護するインメモリストア。
type Store struct {
	mu            sync.Mutex
	profiles      map[string]model.Profile
	servers       map[string]model.Server
	members       map[string]model.Member
	channels      map[string]model.Channel
	conversations map[string]model.Conversation
	sessions      map[string]model.Session

	// Hook はテストで書き込み直前に割り込むためのフック。nilなら何もしない。
	Hook func(op string)
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		profiles:      make(map[string]model.Profile),
		servers:       make(map[string]model.Server),
		members:       make(map[string]model.Member),
		channels:      make(map[string]model.Channel),
		conversations: make(map[string]model.Conversation),
		sessions:      make(map[string]model.Session),
	}
}

func (s *Store) hook(op string) {
	if s.Hook != nil {
		s.Hook(op)
	}
}

// PutProfile はプロフィールを登録する。外部のIDプロバイダー連携の代わりに使う。
func (s *Store) PutProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// PutSession はセッションを登録する。認証層が発行したセッションの代わりに使う。
func (s *Store) PutSession(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// PutChannel はチャンネルを登録する。
func (s *Store) PutChannel(c model.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[c.ID] = c
}

// PutMember は一意制約を確認せずにメンバーを登録する。テストの前提データ用。
func (s *Store) PutMember(m model.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

// PutServer はサーバーを登録する。テストの前提データ用。
func (s *Store) PutServer(srv model.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[srv.ID] = srv
}

// CountMembers は(profile, server)のメンバー行数を返す。
func (s *Store) CountMembers(profileID, serverID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.members {
		if m.ProfileID == profileID && m.ServerID == serverID {
			n++
		}
	}
	return n
}

// CountConversations は会話の総数を返す。
func (s *Store) CountConversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Profiles はProfileRepositoryを返す。
func (s *Store) Profiles() repository.ProfileRepository { return profileRepo{s} }

// Servers はServerRepositoryを返す。
func (s *Store) Servers() repository.ServerRepository { return serverRepo{s} }

// Members はMemberRepositoryを返す。
func (s *Store) Members() repository.MemberRepository { return memberRepo{s} }

// Channels はChannelRepositoryを返す。
func (s *Store) Channels() repository.ChannelRepository { return channelRepo{s} }

// Conversations はConversationRepositoryを返す。
func (s *Store) Conversations() repository.ConversationRepository { return conversationRepo{s} }

// Sessions はSessionRepositoryを返す。
func (s *Store) Sessions() repository.SessionRepository { return sessionRepo{s} }

type profileRepo struct{ s *Store }

func (r profileRepo) FindByID(_ context.Context, id string) (*model.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type serverRepo struct{ s *Store }

func (r serverRepo) FindByID(_ context.Context, id string) (*model.Server, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	srv, ok := r.s.servers[id]
	if !ok {
		return nil, nil
	}
	return &srv, nil
}

func (r serverRepo) FindByInviteCode(_ context.Context, code string) (*model.Server, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.serverByCodeLocked(code), nil
}

func (r serverRepo) FindByInviteCodeAndProfile(_ context.Context, code, profileID string) (*model.Server, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	srv := r.s.serverByCodeLocked(code)
	if srv == nil || r.s.memberLocked(srv.ID, profileID) == nil {
		return nil, nil
	}
	return srv, nil
}

func (r serverRepo) CreateWithOwner(_ context.Context, srv *model.Server, owner *model.Member, ch *model.Channel) error {
	r.s.hook("servers.create")
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.serverByCodeLocked(srv.InviteCode) != nil {
		return repository.ErrInviteCodeTaken
	}
	r.s.servers[srv.ID] = *srv
	r.s.members[owner.ID] = *owner
	r.s.channels[ch.ID] = *ch
	return nil
}

func (r serverRepo) UpdateInviteCode(_ context.Context, serverID, code string) (*model.Server, error) {
	r.s.hook("servers.update_invite_code")
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	srv, ok := r.s.servers[serverID]
	if !ok {
		return nil, nil
	}
	if other := r.s.serverByCodeLocked(code); other != nil && other.ID != serverID {
		return nil, repository.ErrInviteCodeTaken
	}
	srv.InviteCode = code
	srv.UpdatedAt = time.Now()
	r.s.servers[serverID] = srv
	return &srv, nil
}

func (s *Store) serverByCodeLocked(code string) *model.Server {
	for _, srv := range s.servers {
		if srv.InviteCode == code {
			srv := srv
			return &srv
		}
	}
	return nil
}

func (s *Store) memberLocked(serverID, profileID string) *model.Member {
	for _, m := range s.members {
		if m.ServerID == serverID && m.ProfileID == profileID {
			m := m
			return &m
		}
	}
	return nil
}

type memberRepo struct{ s *Store }

func (r memberRepo) FindByID(_ context.Context, id string) (*model.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r memberRepo) FindByServerAndProfile(_ context.Context, serverID, profileID string) (*model.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.memberLocked(serverID, profileID), nil
}

// Create は(profile, server)の一意制約とserverへの外部キー制約を確認してから登録する。
func (r memberRepo) Create(_ context.Context, m *model.Member) error {
	r.s.hook("members.create")
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.servers[m.ServerID]; !ok {
		return repository.ErrServerGone
	}
	if r.s.memberLocked(m.ServerID, m.ProfileID) != nil {
		return model.NewAlreadyMemberError()
	}
	r.s.members[m.ID] = *m
	return nil
}

func (r memberRepo) ListByServerWithProfiles(_ context.Context, serverID string) ([]model.MemberWithProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.MemberWithProfile
	for _, m := range r.s.members {
		if m.ServerID == serverID {
			out = append(out, model.MemberWithProfile{Member: m, Profile: r.s.profiles[m.ProfileID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return rbac.Less(out[i].Member, out[j].Member) })
	return out, nil
}

type channelRepo struct{ s *Store }

func (r channelRepo) FindByID(_ context.Context, id string) (*model.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.channels[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r channelRepo) ListByServer(_ context.Context, serverID string) ([]model.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Channel
	for _, c := range r.s.channels {
		if c.ServerID == serverID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type conversationRepo struct{ s *Store }

func (r conversationRepo) FindByMembers(_ context.Context, a, b string) (*model.ConversationWithMembers, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.conversationLocked(a, b)
	if c == nil {
		return nil, nil
	}
	one, two := r.s.members[c.MemberOneID], r.s.members[c.MemberTwoID]
	return &model.ConversationWithMembers{
		Conversation: *c,
		MemberOne:    model.MemberWithProfile{Member: one, Profile: r.s.profiles[one.ProfileID]},
		MemberTwo:    model.MemberWithProfile{Member: two, Profile: r.s.profiles[two.ProfileID]},
	}, nil
}

// Create はスロット順を問わないメンバー組の一意制約を確認してから登録する。
func (r conversationRepo) Create(_ context.Context, c *model.Conversation) error {
	r.s.hook("conversations.create")
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, okOne := r.s.members[c.MemberOneID]
	_, okTwo := r.s.members[c.MemberTwoID]
	if !okOne || !okTwo {
		return repository.ErrMemberGone
	}
	if r.s.conversationLocked(c.MemberOneID, c.MemberTwoID) != nil {
		return model.NewConversationExistsError()
	}
	r.s.conversations[c.ID] = *c
	return nil
}

func (s *Store) conversationLocked(a, b string) *model.Conversation {
	for _, c := range s.conversations {
		if (c.MemberOneID == a && c.MemberTwoID == b) || (c.MemberOneID == b && c.MemberTwoID == a) {
			c := c
			return &c
		}
	}
	return nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return &sess, nil
}

func (r sessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if !sess.ExpiresAt.After(before) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}
