package capability

import (
	"errors"
	"testing"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		feature string
		action  string
		want    Capability
		wantErr bool
	}{
		{name: "lead convert", feature: "lead_management", action: "convert", want: LeadConvert},
		{name: "contact move", feature: "contact_management", action: "move_to_leads", want: ContactMoveToLeads},
		{name: "data center import", feature: "data_center", action: "import", want: DataCenterImport},
		{name: "unknown feature", feature: "ticket_management", action: "read", wantErr: true},
		{name: "action not on feature", feature: "user_management", action: "convert", wantErr: true},
		{name: "empty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.feature, tt.action)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, models.ErrInvalidInput))
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllCapabilitiesRoundTripThroughParse(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	for _, c := range all {
		parsed, err := Parse(c.Feature().Key(), string(c.Action()))
		require.NoError(t, err, c.String())
		assert.Equal(t, c, parsed)
	}
}

func TestZeroFeatureIsInvalid(t *testing.T) {
	var f Feature
	assert.False(t, f.Valid())
	assert.False(t, f.Has(Read))
	assert.True(t, LeadManagement.Valid())
}

func TestGrantSetManageImpliesEveryAction(t *testing.T) {
	g := NewGrantSet(LeadManage)

	for _, a := range LeadManagement.Actions() {
		c, err := Parse(LeadManagement.Key(), string(a))
		require.NoError(t, err)
		assert.True(t, g.Allows(c), c.String())
	}
	assert.False(t, g.Allows(ContactRead))
	assert.False(t, g.Allows(Capability{}))
}

func TestGrantSetExplicitActionDoesNotImplyManage(t *testing.T) {
	g := NewGrantSet(LeadRead)

	assert.True(t, g.Allows(LeadRead))
	assert.False(t, g.Allows(LeadManage))
	assert.False(t, g.Allows(LeadCreate))
}

func TestGrantSetRows(t *testing.T) {
	roleID := uuid.New()
	rows := NewGrantSet(ReportRead, LeadConvert).Rows(roleID)
	require.Len(t, rows, 2)

	back, skipped := GrantSetFromRows(append(rows, models.RoleGrant{RoleID: roleID, FeatureKey: "legacy", Action: "read"}))
	assert.Len(t, skipped, 1)
	assert.True(t, back.Allows(ReportRead))
	assert.True(t, back.Allows(LeadConvert))
	assert.Equal(t, 2, back.Len())
	for _, r := range rows {
		assert.Equal(t, roleID, r.RoleID)
	}
}
