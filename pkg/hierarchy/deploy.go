package hierarchy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rmax-ai/platformsim/pkg/catalog"
)

// DeployApplication places application appID on the platform or service
// node targetID. The deployment starts in deploying and turns running once
// the settle delay elapses. Nothing changes when either end is missing or
// of the wrong layer.
func (s *Store) DeployApplication(appID, targetID, environment string) (Deployment, error) {
	s.mu.Lock()
	app, ok := s.nodes[appID]
	if !ok || app.Layer != catalog.LayerApplication {
		s.mu.Unlock()
		return Deployment{}, fmt.Errorf("%w: %s is not an application node", ErrInvalidDeployment, appID)
	}
	target, ok := s.nodes[targetID]
	if !ok || (target.Layer != catalog.LayerPlatform && target.Layer != catalog.LayerService) {
		s.mu.Unlock()
		return Deployment{}, fmt.Errorf("%w: %s is not a platform or service node", ErrInvalidDeployment, targetID)
	}

	replicas := app.Config.Replicas
	if replicas <= 0 {
		replicas = 1
	}
	res := defaultDeployResource
	if app.Resources != nil {
		res = app.Resources.Total()
	}
	now := s.now()
	d := Deployment{
		ID:            fmt.Sprintf("deploy-%s", uuid.NewString()),
		ApplicationID: appID,
		TargetID:      targetID,
		Environment:   environment,
		Version:       defaultVersion,
		Status:        DeploymentDeploying,
		Replicas:      replicas,
		Resources:     res,
		Created:       now,
		Updated:       now,
	}
	s.deployments = append(s.deployments, d)
	id := d.ID
	s.timers.Schedule(deployPrefix+id, s.settle, func() { s.settleDeployment(id) })
	s.logger.Debug("deployment_created", "deployment_id", id, "application_id", appID, "target_id", targetID, "environment", environment)
	s.commit()
	return d, nil
}

func (s *Store) settleDeployment(id string) {
	s.mu.Lock()
	i := s.deploymentIndex(id)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Debug("deployment_settle_skipped", "deployment_id", id)
		return
	}
	d := &s.deployments[i]
	if d.Status != DeploymentDeploying {
		s.mu.Unlock()
		return
	}
	d.Status = DeploymentRunning
	d.Updated = s.now()
	s.logger.Debug("deployment_running", "deployment_id", id)
	s.commit()
}

// UpdateDeployment merges u into the deployment. It reports false for an
// unknown id or an invalid status.
func (s *Store) UpdateDeployment(id string, u DeploymentUpdate) bool {
	if u.Status != nil && !u.Status.Valid() {
		return false
	}
	s.mu.Lock()
	i := s.deploymentIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	d := &s.deployments[i]
	if u.Environment != nil {
		d.Environment = *u.Environment
	}
	if u.Version != nil {
		d.Version = *u.Version
	}
	if u.Replicas != nil && *u.Replicas > 0 {
		d.Replicas = *u.Replicas
	}
	if u.Status != nil {
		d.Status = *u.Status
		if d.Status != DeploymentDeploying {
			s.timers.Cancel(deployPrefix + id)
		}
	}
	d.Updated = s.now()
	s.commit()
	return true
}

// RemoveDeployment drops the deployment and its pending settlement.
func (s *Store) RemoveDeployment(id string) bool {
	s.mu.Lock()
	i := s.deploymentIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.deployments = append(s.deployments[:i:i], s.deployments[i+1:]...)
	s.timers.Cancel(deployPrefix + id)
	s.commit()
	return true
}

func (s *Store) Deployments() []Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Deployment{}, s.deployments...)
}

func (s *Store) Deployment(id string) (Deployment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.deploymentIndex(id)
	if i < 0 {
		return Deployment{}, false
	}
	return s.deployments[i], true
}

func (s *Store) deploymentIndex(id string) int {
	for i, d := range s.deployments {
		if d.ID == id {
			return i
		}
	}
	return -1
}
