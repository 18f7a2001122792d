package engine

import (
	"context"

	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/session"
)

// ShareMemories grants another user_id access into the caller's tenant
// space, the administrative-escape mechanism named in §3: an owner can let
// a collaborator read (or write) its memories under strict_tenant mode.
func (e *Engine) ShareMemories(ownerUserID, granteeUserID string, role session.SpaceRole) error {
	e.spaces.EnsureOwner(ownerUserID)
	return e.spaces.Grant(ownerUserID, granteeUserID, role, 0)
}

// RevokeShare removes a previously granted cross-tenant access.
func (e *Engine) RevokeShare(ownerUserID, granteeUserID string) {
	e.spaces.Revoke(ownerUserID, granteeUserID)
}

// GetShared fetches a memory owned by ownerID on behalf of requestorID,
// checking the owner's space ACL instead of requiring an exact user_id
// match. This is strict_tenant mode's escape hatch for explicitly shared
// memories (§3, §7 Forbidden).
func (e *Engine) GetShared(ctx context.Context, requestorID, ownerID, id string) (*model.Memory, error) {
	if !e.spaces.CanRead(ownerID, requestorID) {
		return nil, model.NewError(model.Forbidden, "engine", nil).WithContext(requestorID, id)
	}
	return e.store.GetMemory(ctx, ownerID, id)
}
