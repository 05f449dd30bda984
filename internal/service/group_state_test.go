package service

import (
	"context"
	"testing"
	"time"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/pkg/database"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type GroupStateServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	repo    *MockGroupStateRepository
	cfg     config.SchedulingConfig
	service *GroupStateService
}

func (s *GroupStateServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = new(MockGroupStateRepository)
	s.cfg = config.DefaultSchedulingConfig()
	s.service = NewGroupStateService(s.repo, s.cfg, &MockLogger{})
}

func TestGroupStateServiceTestSuite(t *testing.T) {
	suite.Run(t, new(GroupStateServiceTestSuite))
}

func (s *GroupStateServiceTestSuite) TestGetOrCreate_NewGroup() {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	s.repo.On("Get", s.ctx, "fb123").Return(nil, models.ErrGroupNotFound)
	s.repo.On("Create", s.ctx, mock.AnythingOfType("*models.GroupState")).Return(nil)

	state, err := s.service.GetOrCreate(s.ctx, "fb123", "Test Group", now)

	s.NoError(err)
	s.Equal("fb123", state.ID)
	s.Equal("Test Group", state.Name)
	s.Equal(now.Add(time.Duration(s.cfg.InitialRampDelayHours)*time.Hour), state.InitialRampUntil)
	s.repo.AssertExpectations(s.T())
}

func (s *GroupStateServiceTestSuite) TestGetOrCreate_ExistingGroup() {
	existing := &models.GroupState{ID: "fb123", Version: 4}
	s.repo.On("Get", s.ctx, "fb123").Return(existing, nil)

	state, err := s.service.GetOrCreate(s.ctx, "fb123", "", time.Now())

	s.NoError(err)
	s.Equal(existing, state)
	s.repo.AssertNotCalled(s.T(), "Create", mock.Anything, mock.Anything)
}

func (s *GroupStateServiceTestSuite) TestGetOrCreate_LostCreationRace() {
	winner := &models.GroupState{ID: "fb123"}

	s.repo.On("Get", s.ctx, "fb123").Return(nil, models.ErrGroupNotFound).Once()
	s.repo.On("Create", s.ctx, mock.AnythingOfType("*models.GroupState")).Return(database.ErrDuplicateKey)
	s.repo.On("Get", s.ctx, "fb123").Return(winner, nil).Once()

	state, err := s.service.GetOrCreate(s.ctx, "fb123", "", time.Now())

	s.NoError(err)
	s.Equal(winner, state)
}

func (s *GroupStateServiceTestSuite) TestCanAcceptPost_FreshGroup() {
	state := &models.GroupState{ID: "fb123"}

	adm := s.service.CanAcceptPost(state, time.Now())

	s.True(adm.Allowed)
}

func (s *GroupStateServiceTestSuite) TestCanAcceptPost_InsideCooldown() {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	state := &models.GroupState{
		ID:            "fb123",
		LastPostTimes: []time.Time{now.Add(-10 * time.Hour)},
	}

	adm := s.service.CanAcceptPost(state, now)

	s.False(adm.Allowed)
	s.Equal(models.ReasonCooldown, adm.Reason)
}

func (s *GroupStateServiceTestSuite) TestCanAcceptPost_CooldownElapsed() {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	state := &models.GroupState{
		ID:            "fb123",
		LastPostTimes: []time.Time{now.Add(-80 * time.Hour)},
	}

	adm := s.service.CanAcceptPost(state, now)

	s.True(adm.Allowed)
}

func (s *GroupStateServiceTestSuite) TestCanAcceptPost_DailyLimitReached() {
	// Shrink the cooldown so the rolling 24h cap is the binding rule
	s.cfg.GlobalGroupCooldownHours = 1
	s.service = NewGroupStateService(s.repo, s.cfg, &MockLogger{})

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	state := &models.GroupState{
		ID:            "fb123",
		LastPostTimes: []time.Time{now.Add(-2 * time.Hour)},
	}

	adm := s.service.CanAcceptPost(state, now)

	s.False(adm.Allowed)
	s.Equal(models.ReasonDailyLimit, adm.Reason)
}

func (s *GroupStateServiceTestSuite) TestCanAcceptPost_CooldownReasonWins() {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	state := &models.GroupState{
		ID:            "fb123",
		LastPostTimes: []time.Time{now.Add(-2 * time.Hour)},
	}

	adm := s.service.CanAcceptPost(state, now)

	s.False(adm.Allowed)
	s.Equal(models.ReasonCooldown, adm.Reason)
}

func (s *GroupStateServiceTestSuite) TestCanScheduleAt_InsideSpacing() {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	state := &models.GroupState{
		ID:            "fb123",
		LastPostTimes: []time.Time{now},
	}

	adm := s.service.CanScheduleAt(state, now.Add(30*time.Minute))

	s.False(adm.Allowed)
	s.Equal(models.ReasonSpacing, adm.Reason)
}

func (s *GroupStateServiceTestSuite) TestCanScheduleAt_ExactSpacing() {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	spacing := time.Duration(s.cfg.CrossAccountSpacingMinutes) * time.Minute
	state := &models.GroupState{
		ID:            "fb123",
		LastPostTimes: []time.Time{now},
	}

	s.True(s.service.CanScheduleAt(state, now.Add(spacing)).Allowed)
}

func (s *GroupStateServiceTestSuite) TestCanScheduleAt_ChecksFuturePosts() {
	// A task committed by an overlapping run sits in the future; a slot too
	// close before it is still a violation
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	state := &models.GroupState{
		ID:            "fb123",
		LastPostTimes: []time.Time{now.Add(-5 * time.Hour), now.Add(time.Hour)},
	}

	adm := s.service.CanScheduleAt(state, now)

	s.False(adm.Allowed)
	s.Equal(models.ReasonSpacing, adm.Reason)
}

func (s *GroupStateServiceTestSuite) TestSummary() {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	states := []*models.GroupState{
		{ID: "g1", LastPostTimes: []time.Time{now.Add(-10 * time.Hour)}},
		{ID: "g2", LastPostTimes: []time.Time{now.Add(-200 * time.Hour), now.Add(-100 * time.Hour)}},
		{ID: "g3"},
	}
	s.repo.On("ListAll", s.ctx).Return(states, nil)

	summary, err := s.service.Summary(s.ctx, now)

	s.NoError(err)
	s.Equal(3, summary.TotalGroups)
	s.Equal(1, summary.GroupsInCooldown)
	s.Equal(1, summary.GroupsAtDailyLimit)
	s.InDelta(1.0, summary.AvgPostsPerGroup, 0.001)
	s.Len(summary.CooldownGroups, 1)
	s.Equal("g1", summary.CooldownGroups[0].GroupID)
	s.Equal(now.Add(-10*time.Hour).Add(72*time.Hour), summary.CooldownGroups[0].NextAvailableAt)
}

func (s *GroupStateServiceTestSuite) TestSummary_NoGroups() {
	s.repo.On("ListAll", s.ctx).Return([]*models.GroupState{}, nil)

	summary, err := s.service.Summary(s.ctx, time.Now())

	s.NoError(err)
	s.Equal(0, summary.TotalGroups)
	s.Zero(summary.AvgPostsPerGroup)
}
