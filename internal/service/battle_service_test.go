package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"rpg-nexus/backend/internal/models"
	"rpg-nexus/backend/pkg/logger"
)

// battleUpsertPattern pins the save statement to the composite-key upsert:
// one authoritative record per (character_id, battle_id), with every mutable
// column overwritten by the incoming write.
const battleUpsertPattern = `INSERT INTO "battle_states" .*ON CONFLICT \("character_id","battle_id"\) DO UPDATE SET ` +
	`"user_id"=.+"theme"=.+"history"=.+"player_health"=.+"enemy_health"=.+"last_updated"=`

func newMockBattleService(t *testing.T) (*BattleService, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewBattleService(db, nil, 0, logger.New(logger.DefaultConfig())), mock
}

func TestSaveStateUsesCompositeKeyUpsert(t *testing.T) {
	svc, mock := newMockBattleService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(battleUpsertPattern).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	state := &models.BattleState{
		CharacterID:  7,
		BattleID:     "b-1",
		UserID:       3,
		Theme:        "caverna sombria",
		PlayerHealth: 100,
		EnemyHealth:  100,
	}
	require.NoError(t, svc.SaveState(context.Background(), state))
	assert.False(t, state.LastUpdated.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveStateResubmissionStaysAnUpsert(t *testing.T) {
	svc, mock := newMockBattleService(t)

	for _, id := range []int64{1, 1} {
		mock.ExpectBegin()
		mock.ExpectQuery(battleUpsertPattern).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
		mock.ExpectCommit()
	}

	first := &models.BattleState{
		CharacterID:  7,
		BattleID:     "b-1",
		UserID:       3,
		Theme:        "caverna sombria",
		PlayerHealth: 100,
		EnemyHealth:  100,
	}
	require.NoError(t, svc.SaveState(context.Background(), first))

	// Same key, updated pools. The conflict clause makes this overwrite the
	// stored record rather than insert a second one.
	second := &models.BattleState{
		CharacterID:  7,
		BattleID:     "b-1",
		UserID:       3,
		Theme:        "caverna sombria",
		PlayerHealth: 58,
		EnemyHealth:  42,
	}
	require.NoError(t, svc.SaveState(context.Background(), second))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteStateMissingRowIsNotFound(t *testing.T) {
	svc, mock := newMockBattleService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "battle_states" WHERE character_id = .+ AND battle_id = .+ AND user_id = .+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := svc.DeleteState(context.Background(), 7, "b-1", 3)
	assert.ErrorIs(t, err, ErrBattleNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
