package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/guildhall/internal/model"
	"github.com/hitoshi/guildhall/internal/repository"
	"github.com/hitoshi/guildhall/internal/repository/memory"
)

// --- モック ---

type mockConvRepo struct {
	findByMembersFn func(ctx context.Context, a, b string) (*model.ConversationWithMembers, error)
	createFn        func(ctx context.Context, c *model.Conversation) error
}

func (m *mockConvRepo) FindByMembers(ctx context.Context, a, b string) (*model.ConversationWithMembers, error) {
	return m.findByMembersFn(ctx, a, b)
}
func (m *mockConvRepo) Create(ctx context.Context, c *model.Conversation) error {
	return m.createFn(ctx, c)
}

// newStore はサーバーS上のメンバーM1(Alice)とM2(Bob)、別サーバーT上のM3を用意する。
func newStore() *memory.Store {
	s := memory.NewStore()
	s.PutProfile(model.Profile{ID: "p-1", Name: "Alice"})
	s.PutProfile(model.Profile{ID: "p-2", Name: "Bob"})
	s.PutProfile(model.Profile{ID: "p-3", Name: "Carol"})
	s.PutServer(model.Server{ID: "S", InviteCode: "s-code"})
	s.PutServer(model.Server{ID: "T", InviteCode: "t-code"})
	s.PutMember(model.Member{ID: "M1", Role: model.RoleAdmin, ProfileID: "p-1", ServerID: "S"})
	s.PutMember(model.Member{ID: "M2", Role: model.RoleGuest, ProfileID: "p-2", ServerID: "S"})
	s.PutMember(model.Member{ID: "M3", Role: model.RoleGuest, ProfileID: "p-3", ServerID: "T"})
	return s
}

// TestResolveConversation_Symmetric はresolve(A,B)とresolve(B,A)が同じ会話を返すことを検証する。
func TestResolveConversation_Symmetric(t *testing.T) {
	store := newStore()
	r := NewResolver(store.Conversations(), store.Members(), nil)
	ctx := context.Background()

	ab, err := r.ResolveConversation(ctx, "M1", "M2")
	if err != nil {
		t.Fatalf("ResolveConversation(M1, M2): %v", err)
	}
	ba, err := r.ResolveConversation(ctx, "M2", "M1")
	if err != nil {
		t.Fatalf("ResolveConversation(M2, M1): %v", err)
	}

	if ab.ID != ba.ID {
		t.Errorf("conversation IDs differ: %s vs %s", ab.ID, ba.ID)
	}
	if ab.MemberOneID != "M1" || ab.MemberTwoID != "M2" {
		t.Errorf("slots = (%s, %s), want (M1, M2)", ab.MemberOneID, ab.MemberTwoID)
	}
	if n := store.CountConversations(); n != 1 {
		t.Errorf("conversation rows = %d, want 1", n)
	}
}

// TestResolveConversation_CounterpartProfiles は各閲覧者から相手のプロフィールが取れることを検証する。
func TestResolveConversation_CounterpartProfiles(t *testing.T) {
	store := newStore()
	r := NewResolver(store.Conversations(), store.Members(), nil)
	ctx := context.Background()

	fromM1, err := r.ResolveConversation(ctx, "M1", "M2")
	if err != nil {
		t.Fatal(err)
	}
	if other := fromM1.Counterpart("p-1"); other.ID != "M2" || other.Profile.Name != "Bob" {
		t.Errorf("M1's counterpart = %s/%q, want M2/Bob", other.ID, other.Profile.Name)
	}

	fromM2, err := r.ResolveConversation(ctx, "M2", "M1")
	if err != nil {
		t.Fatal(err)
	}
	if other := fromM2.Counterpart("p-2"); other.ID != "M1" || other.Profile.Name != "Alice" {
		t.Errorf("M2's counterpart = %s/%q, want M1/Alice", other.ID, other.Profile.Name)
	}
}

// TestResolveConversation_ConcurrentOppositeOrder は逆向きの同時要求でも会話が1件になることを検証する。
func TestResolveConversation_ConcurrentOppositeOrder(t *testing.T) {
	store := newStore()

	// 両方の呼び出しが検索を終えてから作成に進むように揃える
	var arrived sync.WaitGroup
	arrived.Add(2)
	store.Hook = func(op string) {
		if op == "conversations.create" {
			arrived.Done()
			arrived.Wait()
		}
	}

	r := NewResolver(store.Conversations(), store.Members(), nil)

	var wg sync.WaitGroup
	results := make([]*model.ConversationWithMembers, 2)
	errs := make([]error, 2)
	pairs := [][2]string{{"M1", "M2"}, {"M2", "M1"}}
	for i, p := range pairs {
		wg.Add(1)
		go func(i int, a, b string) {
			defer wg.Done()
			results[i], errs[i] = r.ResolveConversation(context.Background(), a, b)
		}(i, p[0], p[1])
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if results[0].ID != results[1].ID {
		t.Errorf("conversation IDs differ: %s vs %s", results[0].ID, results[1].ID)
	}
	if n := store.CountConversations(); n != 1 {
		t.Errorf("conversation rows = %d, want 1", n)
	}
}

func TestResolveConversation_ManyConcurrentCallers(t *testing.T) {
	store := newStore()
	r := NewResolver(store.Conversations(), store.Members(), nil)

	const callers = 16
	var wg sync.WaitGroup
	ids := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "M1", "M2"
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := r.ResolveConversation(context.Background(), a, b)
			if err != nil {
				t.Errorf("ResolveConversation: %v", err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got %s, want %s", i, ids[i], ids[0])
		}
	}
	if n := store.CountConversations(); n != 1 {
		t.Errorf("conversation rows = %d, want 1", n)
	}
}

func TestResolveConversation_InvalidInput(t *testing.T) {
	r := NewResolver(newStore().Conversations(), nil, nil)
	ctx := context.Background()

	if _, err := r.ResolveConversation(ctx, "M1", "M1"); !model.HasCode(err, model.ErrCodeSelfConversation) {
		t.Errorf("self conversation error = %v, want SELF_CONVERSATION", err)
	}
	if _, err := r.ResolveConversation(ctx, "", "M1"); !model.HasCode(err, model.ErrCodeMemberNotFound) {
		t.Errorf("empty member error = %v, want MEMBER_NOT_FOUND", err)
	}
	if _, err := r.ResolveConversation(ctx, "M1", "ghost"); !model.HasCode(err, model.ErrCodeMemberNotFound) {
		t.Errorf("missing member error = %v, want MEMBER_NOT_FOUND", err)
	}
}

// TestResolveConversation_ExistsIsNotSurfaced は一意制約違反時に勝者の会話を読み直して返すことを検証する。
func TestResolveConversation_ExistsIsNotSurfaced(t *testing.T) {
	winner := &model.ConversationWithMembers{Conversation: model.Conversation{ID: "winner", MemberOneID: "M2", MemberTwoID: "M1"}}
	finds := 0
	repo := &mockConvRepo{
		findByMembersFn: func(ctx context.Context, a, b string) (*model.ConversationWithMembers, error) {
			finds++
			if finds == 1 {
				return nil, nil
			}
			return winner, nil
		},
		createFn: func(ctx context.Context, c *model.Conversation) error {
			return model.NewConversationExistsError()
		},
	}

	got, err := NewResolver(repo, nil, nil).ResolveConversation(context.Background(), "M1", "M2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "winner" {
		t.Errorf("ID = %q, want winner", got.ID)
	}
}

func TestResolveConversation_StoreErrorIsWrapped(t *testing.T) {
	storeErr := errors.New("timeout")
	repo := &mockConvRepo{
		findByMembersFn: func(ctx context.Context, a, b string) (*model.ConversationWithMembers, error) {
			return nil, nil
		},
		createFn: func(ctx context.Context, c *model.Conversation) error {
			return storeErr
		},
	}

	_, err := NewResolver(repo, nil, nil).ResolveConversation(context.Background(), "M1", "M2")
	if !errors.Is(err, storeErr) {
		t.Errorf("error = %v, want wrapped %v", err, storeErr)
	}
}

// TestResolveConversation_MemberGone は外部キー違反時に実際に存在しないメンバーを報告することを検証する。
func TestResolveConversation_MemberGone(t *testing.T) {
	tests := []struct {
		name    string
		present []string
		want    string
	}{
		{name: "1人目が削除済み", present: []string{"M2"}, want: "M1"},
		{name: "2人目が削除済み", present: []string{"M1"}, want: "M2"},
		{name: "両方とも残っている", present: []string{"M1", "M2"}, want: "M2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			for _, id := range tt.present {
				store.PutMember(model.Member{ID: id, Role: model.RoleGuest, ProfileID: "p-" + id, ServerID: "S"})
			}
			repo := &mockConvRepo{
				findByMembersFn: func(ctx context.Context, a, b string) (*model.ConversationWithMembers, error) {
					return nil, nil
				},
				createFn: func(ctx context.Context, c *model.Conversation) error {
					return repository.ErrMemberGone
				},
			}

			_, err := NewResolver(repo, store.Members(), nil).ResolveConversation(context.Background(), "M1", "M2")
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMemberNotFound {
				t.Fatalf("error = %v, want MEMBER_NOT_FOUND", err)
			}
			if !strings.HasSuffix(apiErr.Message, ": "+tt.want) {
				t.Errorf("message = %q, want it to name %s", apiErr.Message, tt.want)
			}
		})
	}
}

// TestOpenConversation は閲覧者の文脈で相手の参加者が返ることを検証する。
func TestOpenConversation(t *testing.T) {
	store := newStore()
	r := NewResolver(store.Conversations(), store.Members(), nil)
	ctx := context.Background()

	opened, err := r.OpenConversation(ctx, "p-1", "S", "M2")
	if err != nil {
		t.Fatalf("OpenConversation: %v", err)
	}
	if opened.Self.ID != "M1" || opened.Other.ID != "M2" || opened.Other.Profile.Name != "Bob" {
		t.Errorf("opened = self %s, other %s/%q", opened.Self.ID, opened.Other.ID, opened.Other.Profile.Name)
	}

	back, err := r.OpenConversation(ctx, "p-2", "S", "M1")
	if err != nil {
		t.Fatalf("OpenConversation reverse: %v", err)
	}
	if back.Conversation.ID != opened.Conversation.ID {
		t.Errorf("reverse opened a different conversation")
	}
	if back.Self.ID != "M2" || back.Other.Profile.Name != "Alice" {
		t.Errorf("reverse = self %s, other %q", back.Self.ID, back.Other.Profile.Name)
	}
}

func TestOpenConversation_Errors(t *testing.T) {
	store := newStore()
	r := NewResolver(store.Conversations(), store.Members(), nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		profileID string
		serverID  string
		peer      string
		wantCode  string
	}{
		{name: "セッションなし", profileID: "", serverID: "S", peer: "M2", wantCode: model.ErrCodeUnauthorized},
		{name: "サーバーのメンバーでない", profileID: "p-3", serverID: "S", peer: "M2", wantCode: model.ErrCodeNotAMember},
		{name: "相手が存在しない", profileID: "p-1", serverID: "S", peer: "ghost", wantCode: model.ErrCodeMemberNotFound},
		{name: "相手が別サーバー", profileID: "p-1", serverID: "S", peer: "M3", wantCode: model.ErrCodeMemberNotFound},
		{name: "自分自身", profileID: "p-1", serverID: "S", peer: "M1", wantCode: model.ErrCodeSelfConversation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.OpenConversation(ctx, tt.profileID, tt.serverID, tt.peer)
			if !model.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want %s", err, tt.wantCode)
			}
		})
	}
	if n := store.CountConversations(); n != 0 {
		t.Errorf("failed opens created %d conversations", n)
	}
}
