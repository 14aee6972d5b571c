package executor

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/dag"
	"github.com/vk/voxpipe/internal/registry"
)

// buildDepsStruct populates the `deps` struct for a stage handler by
// resolving the stage's 'uses' block entries to live resource instances.
func (e *Executor) buildDepsStruct(ctx context.Context, node *dag.Node, handler *registry.RegisteredRunner) (any, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building dependency struct.", "stage", node.ID)
	depsStruct := handler.NewDeps()
	if depsStruct == nil {
		return nil, fmt.Errorf("handler for stage %s has no deps constructor", node.ID)
	}

	if node.StageConfig.Uses == nil {
		logger.Debug("Stage has no 'uses' block, returning empty deps.", "stage", node.ID)
		return depsStruct, nil
	}

	usesMap := node.StageConfig.Uses
	depsValue := reflect.ValueOf(depsStruct).Elem()
	depsType := depsValue.Type()

	for i := 0; i < depsValue.NumField(); i++ {
		field := depsType.Field(i)
		fieldLogger := logger.With("stage", node.ID, "go_field", field.Name)

		tag := field.Tag.Get("vxp")
		if tag == "" || tag == "-" {
			fieldLogger.Debug("Dependency field has no 'vxp' tag, skipping.")
			continue
		}

		lookupKey := strings.Split(tag, ",")[0]
		resourceExpr, ok := usesMap[lookupKey]
		if !ok {
			fieldLogger.Debug("No matching entry in 'uses' block for key, skipping.", "key", lookupKey)
			continue
		}

		vars := resourceExpr.Variables()
		if len(vars) != 1 {
			return nil, fmt.Errorf("field '%s' in 'uses' must be a direct reference to one resource", lookupKey)
		}
		resourceID, err := traversalToID(vars[0])
		if err != nil {
			return nil, err
		}
		fieldLogger.Debug("Resolved resource dependency.", "resource_id", resourceID)

		instance, found := e.resourceInstances.Load(resourceID)
		if !found {
			return nil, fmt.Errorf("stage '%s' requires resource '%s', which has not been created", node.ID, resourceID)
		}

		instanceValue := reflect.ValueOf(instance)
		if !instanceValue.Type().AssignableTo(field.Type) {
			return nil, fmt.Errorf("resource '%s' has type %s, which cannot be assigned to deps field '%s' (%s)",
				resourceID, instanceValue.Type(), field.Name, field.Type)
		}
		depsValue.Field(i).Set(instanceValue)
	}

	return depsStruct, nil
}

// traversalToID converts a traversal like resource.s3.artifacts into a node ID.
func traversalToID(traversal hcl.Traversal) (string, error) {
	if len(traversal) != 3 {
		return "", fmt.Errorf("resource reference must have the form resource.<asset_type>.<instance_name>")
	}
	if traversal.RootName() != "resource" {
		return "", fmt.Errorf("'uses' entries may only reference resources, got root %q", traversal.RootName())
	}
	typeAttr, typeOk := traversal[1].(hcl.TraverseAttr)
	nameAttr, nameOk := traversal[2].(hcl.TraverseAttr)
	if !typeOk || !nameOk {
		return "", fmt.Errorf("malformed resource reference")
	}
	return fmt.Sprintf("resource.%s.%s", typeAttr.Name, nameAttr.Name), nil
}
