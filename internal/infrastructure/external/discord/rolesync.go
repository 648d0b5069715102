package discord

import (
	"context"
	"strconv"
	"sync"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/application/verify"
	"github.com/ctf-hub/ctf-community-hub/internal/application/workflow"
	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
)

// RoleSync maps role names to guild role ids and applies grants/revokes.
// Rank roles are resolved against the guild's role list, refreshed on a
// miss so newly created rank roles are picked up without a restart.
type RoleSync struct {
	client *Client
	cfg    config.DiscordConfig

	mu      sync.Mutex
	roleIDs map[string]int64
}

// NewRoleSync creates the role synchronizer.
func NewRoleSync(client *Client, cfg config.DiscordConfig) *RoleSync {
	return &RoleSync{
		client:  client,
		cfg:     cfg,
		roleIDs: make(map[string]int64),
	}
}

var (
	_ workflow.RoleSync  = (*RoleSync)(nil)
	_ verify.RoleGranter = (*RoleSync)(nil)
)

// GrantRole grants the named role. Granting an already-held role is a no-op
// on Discord's side, which keeps re-applied transitions safe.
func (r *RoleSync) GrantRole(ctx context.Context, userID int64, roleName string) error {
	roleID, err := r.resolve(ctx, roleName)
	if err != nil {
		return err
	}
	if err := r.client.AddMemberRole(ctx, r.cfg.GuildID, userID, roleID); err != nil {
		return shared.WrapError("discord", "GrantRole", shared.ErrSideEffectFailed,
			"role grant failed", err)
	}
	return nil
}

// RevokeRole revokes the named role.
func (r *RoleSync) RevokeRole(ctx context.Context, userID int64, roleName string) error {
	roleID, err := r.resolve(ctx, roleName)
	if err != nil {
		return err
	}
	if err := r.client.RemoveMemberRole(ctx, r.cfg.GuildID, userID, roleID); err != nil {
		return shared.WrapError("discord", "RevokeRole", shared.ErrSideEffectFailed,
			"role revoke failed", err)
	}
	return nil
}

func (r *RoleSync) resolve(ctx context.Context, roleName string) (int64, error) {
	if roleName == verify.MemberRoleName && r.cfg.MemberRoleID != 0 {
		return r.cfg.MemberRoleID, nil
	}

	r.mu.Lock()
	id, ok := r.roleIDs[roleName]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	roles, err := r.client.GuildRoles(ctx, r.cfg.GuildID)
	if err != nil {
		return 0, shared.WrapError("discord", "SyncRole", shared.ErrSideEffectFailed,
			"could not list guild roles", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range roles {
		rid, err := strconv.ParseInt(role.ID, 10, 64)
		if err != nil {
			continue
		}
		r.roleIDs[role.Name] = rid
	}
	if id, ok := r.roleIDs[roleName]; ok {
		return id, nil
	}
	return 0, shared.WrapError("discord", "SyncRole", shared.ErrSideEffectFailed,
		"no guild role named "+roleName, nil)
}
