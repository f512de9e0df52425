//go:build integration
// +build integration

package di

import (
	"context"
	"os"
	"testing"

	"utopai/internal/config"
	"utopai/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ServiceContainerIntegrationTestSuite exercises the DI container against a real database
type ServiceContainerIntegrationTestSuite struct {
	suite.Suite
	Config    *config.Config
	Logger    *observability.Logger
	Container *ServiceContainer
}

func TestServiceContainerIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceContainerIntegrationTestSuite))
}

func (suite *ServiceContainerIntegrationTestSuite) SetupSuite() {
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})

	cfg, err := config.NewConfig()
	require.NoError(suite.T(), err)
	suite.Config = cfg

	if testDatabaseURL := os.Getenv("TEST_DATABASE_URL"); testDatabaseURL != "" {
		suite.Config.Database.URL = testDatabaseURL
	}

	suite.Logger = logger
	suite.Container = NewServiceContainer(cfg, logger)

	require.NoError(suite.T(), suite.Container.Initialize(context.Background()))
}

func (suite *ServiceContainerIntegrationTestSuite) TearDownSuite() {
	if suite.Container != nil {
		assert.NoError(suite.T(), suite.Container.Shutdown(context.Background()))
	}
}

func (suite *ServiceContainerIntegrationTestSuite) TestAllServicesResolvable() {
	userService, err := suite.Container.GetUserService()
	suite.Require().NoError(err)
	suite.NotNil(userService)

	activityService, err := suite.Container.GetActivityService()
	suite.Require().NoError(err)
	suite.NotNil(activityService)

	progressService, err := suite.Container.GetProgressService()
	suite.Require().NoError(err)
	suite.NotNil(progressService)

	gamificationService, err := suite.Container.GetGamificationService()
	suite.Require().NoError(err)
	suite.NotNil(gamificationService)

	conversationService, err := suite.Container.GetConversationService()
	suite.Require().NoError(err)
	suite.NotNil(conversationService)

	contentGenerator, err := suite.Container.GetContentGenerator()
	suite.Require().NoError(err)
	suite.NotNil(contentGenerator)

	evaluator, err := suite.Container.GetEvaluator()
	suite.Require().NoError(err)
	suite.NotNil(evaluator)

	aiService, err := suite.Container.GetAIService()
	suite.Require().NoError(err)
	suite.NotNil(aiService)

	emailService, err := suite.Container.GetEmailService()
	suite.Require().NoError(err)
	suite.NotNil(emailService)
}

func (suite *ServiceContainerIntegrationTestSuite) TestThemeCatalogAvailable() {
	catalog := suite.Container.GetThemeCatalog()
	suite.Require().NotNil(catalog)
	suite.True(catalog.IsKnown("superhelte"))
	suite.True(catalog.IsKnown("prinsesse"))
}

func (suite *ServiceContainerIntegrationTestSuite) TestDatabaseReachable() {
	db := suite.Container.GetDatabase()
	suite.Require().NotNil(db)
	suite.NoError(db.PingContext(context.Background()))
}

func (suite *ServiceContainerIntegrationTestSuite) TestGetUnknownService() {
	_, err := suite.Container.GetService("does-not-exist")
	suite.Error(err)
}
