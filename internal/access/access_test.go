package access

import (
    "errors"
    "testing"

    "github.com/stretchr/testify/assert"

    "github.com/iliyamo/ajali/internal/apperr"
    "github.com/iliyamo/ajali/internal/model"
)

func TestReportGuards(t *testing.T) {
    report := model.Report{ID: "r1", UserID: "alice"}
    owner := &Actor{ID: "alice", Role: model.RoleUser}
    stranger := &Actor{ID: "bob", Role: model.RoleUser}
    admin := &Actor{ID: "root", Role: model.RoleAdmin}

    type check func(*Actor, model.Report) error
    guards := map[string]check{
        "read":    CanRead,
        "content": CanMutateContent,
        "status":  CanMutateStatus,
        "delete":  CanDelete,
        "media":   CanManageMedia,
    }

    // expected outcome per guard for: anonymous, owner, stranger, admin
    want := map[string][4]error{
        "read":    {nil, nil, nil, nil},
        "content": {apperr.ErrUnauthorized, nil, apperr.ErrForbidden, nil},
        "status":  {apperr.ErrUnauthorized, apperr.ErrForbidden, apperr.ErrForbidden, nil},
        "delete":  {apperr.ErrUnauthorized, nil, apperr.ErrForbidden, nil},
        "media":   {apperr.ErrUnauthorized, nil, apperr.ErrForbidden, apperr.ErrForbidden},
    }

    actors := [4]*Actor{nil, owner, stranger, admin}
    names := [4]string{"anonymous", "owner", "stranger", "admin"}

    for guard, fn := range guards {
        for i, a := range actors {
            t.Run(guard+"/"+names[i], func(t *testing.T) {
                err := fn(a, report)
                expected := want[guard][i]
                if expected == nil {
                    assert.NoError(t, err)
                    return
                }
                assert.True(t, errors.Is(err, expected), "got %v", err)
            })
        }
    }
}

func TestEmptyActorIDNeverOwns(t *testing.T) {
    orphan := model.Report{ID: "r1", UserID: ""}
    err := CanMutateContent(&Actor{ID: "", Role: model.RoleUser}, orphan)
    assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUserStatsAndAdminGuards(t *testing.T) {
    assert.ErrorIs(t, CanViewUserStats(nil, "alice"), apperr.ErrUnauthorized)
    assert.NoError(t, CanViewUserStats(&Actor{ID: "alice"}, "alice"))
    assert.ErrorIs(t, CanViewUserStats(&Actor{ID: "bob"}, "alice"), apperr.ErrForbidden)
    assert.NoError(t, CanViewUserStats(&Actor{ID: "root", Role: model.RoleAdmin}, "alice"))

    assert.ErrorIs(t, RequireAdmin(nil), apperr.ErrUnauthorized)
    assert.ErrorIs(t, RequireAdmin(&Actor{ID: "bob", Role: model.RoleUser}), apperr.ErrForbidden)
    assert.NoError(t, RequireAdmin(&Actor{ID: "root", Role: model.RoleAdmin}))
    assert.ErrorIs(t, RequireActor(nil), apperr.ErrUnauthorized)
}
