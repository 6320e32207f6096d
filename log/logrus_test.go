package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/kzs0/strata"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookRecordsBreadcrumbs(t *testing.T) {
	st := newStore(t)
	ctx, guard := st.ForkIsolation(context.Background())
	defer guard.Close()

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(NewHook(st))

	logger.WithContext(ctx).Debug("ignored")
	logger.WithContext(ctx).WithError(errors.New("timeout")).Error("query failed")

	crumbs := st.Isolation(ctx).Breadcrumbs()
	require.Len(t, crumbs, 1)
	assert.Equal(t, "query failed", crumbs[0].Message)
	assert.Equal(t, strata.LevelError, crumbs[0].Level)
	assert.Equal(t, "timeout", crumbs[0].Data["error"])

	traceID, _ := st.ActiveTraceIDs(ctx)
	assert.Contains(t, buf.String(), `"trace_id":"`+traceID+`"`)
}

func TestHookLevels(t *testing.T) {
	assert.Len(t, NewHook(nil).Levels(), 5)
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, NewHook(nil, logrus.ErrorLevel).Levels())
	assert.Equal(t, strata.LevelFatal, levelFromLogrus(logrus.PanicLevel))
	assert.Equal(t, strata.LevelDebug, levelFromLogrus(logrus.TraceLevel))
}
