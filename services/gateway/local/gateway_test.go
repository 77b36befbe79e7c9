package localgw_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/tests"
)

func validCoordinator() school.NewCoordinator {
	return school.NewCoordinator{
		SchoolName:      " Pine School ",
		SchoolPIN:       "PINE-1",
		Name:            "Imran Qureshi",
		Email:           "Head@Pine.School",
		Password:        testutil.OakPassword,
		PasswordConfirm: testutil.OakPassword,
		PIN:             "4444",
		MobileNumber:    "+923005556677",
	}
}

func TestGateway_SignUp(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(nc *school.NewCoordinator)
		field  string
	}{
		{name: "blank school", mutate: func(nc *school.NewCoordinator) { nc.SchoolName = "  " }, field: "school_name"},
		{name: "bad email", mutate: func(nc *school.NewCoordinator) { nc.Email = "head" }, field: "email"},
		{name: "bad PIN", mutate: func(nc *school.NewCoordinator) { nc.PIN = "44" }, field: "pin"},
		{name: "confirmation mismatch", mutate: func(nc *school.NewCoordinator) { nc.PasswordConfirm = "other" }, field: "password_confirm"},
		{name: "weak password", mutate: func(nc *school.NewCoordinator) { nc.Password, nc.PasswordConfirm = "password", "password" }, field: "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nc := validCoordinator()
			tt.mutate(&nc)
			_, err := env.Gateway.SignUp(ctx, nc)
			require.Error(t, err)
			require.True(t, core.IsValidation(err))

			var fields []string
			for _, f := range err.(*core.ValidationError).Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}

	current, err := env.Gateway.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	sess, err := env.Gateway.SignUp(ctx, validCoordinator())
	require.NoError(t, err)
	assert.Equal(t, "head@pine.school", sess.Email)
	assert.NotEmpty(t, sess.SchoolID)

	sch, err := env.Repo.GetSchool(ctx, sess.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, "Pine School", sch.Name)

	current, err = env.Gateway.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, sess, *current)

	_, err = env.Gateway.SignUp(ctx, validCoordinator())
	assert.True(t, core.IsConflict(err))
}

func TestGateway_SignIn(t *testing.T) {
	env := testutil.NewEnv(t)
	oak := testutil.SeedOakSchool(t, env.Repo)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: testutil.OakEmail, password: "Wr0ng!pass"},
		{name: "unknown email", email: "nobody@oak.school", password: testutil.OakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Gateway.SignIn(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.True(t, core.IsAuth(err))
			assert.Equal(t, school.ErrInvalidCredentials.Error(), err.Error(), "both cases read the same")
		})
	}

	// teachers have no password login
	_, err := env.Repo.CreateTeacher(ctx, school.Teacher{SchoolID: oak.School.ID, Name: "Bilal", Email: "bilal@oak.school", PIN: "1234"})
	require.NoError(t, err)
	_, err = env.Gateway.SignIn(ctx, "bilal@oak.school", testutil.OakPassword)
	assert.True(t, core.IsAuth(err))

	sess, err := env.Gateway.SignIn(ctx, testutil.OakEmail, testutil.OakPassword)
	require.NoError(t, err)
	assert.Equal(t, school.AuthSession{UserID: oak.Coordinator.ID, SchoolID: oak.School.ID, Email: testutil.OakEmail}, sess)

	require.NoError(t, env.Gateway.SignOut(ctx))
	current, err := env.Gateway.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestGateway_ResetPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	testutil.SeedOakSchool(t, env.Repo)
	ctx := context.Background()

	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "too short", password: "Ab1!", wantErr: "password must contain at least 8 characters"},
		{name: "whitespace", password: "Abc 123!xyz", wantErr: "password must not contain whitespace"},
		{name: "numeric", password: "1234567890", wantErr: "password cannot be entirely numeric"},
		{name: "not complex", password: "abcdefgh12", wantErr: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{name: "like the name", password: "Amina0kafor!", wantErr: "password cannot be similar to the coordinator's name or email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Gateway.ResetPassword(ctx, testutil.OakEmail, tt.password)
			require.Error(t, err)
			require.True(t, core.IsValidation(err))
			flds := err.(*core.ValidationError).Fields
			require.Len(t, flds, 1)
			assert.Equal(t, "password", flds[0].Field)
			assert.Equal(t, tt.wantErr, flds[0].Error)
		})
	}

	err := env.Gateway.ResetPassword(ctx, "nobody@oak.school", "N3w#Secret")
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, env.Gateway.ResetPassword(ctx, " PRINCIPAL@oak.school", "N3w#Secret"))
	_, err = env.Gateway.SignIn(ctx, testutil.OakEmail, testutil.OakPassword)
	assert.True(t, core.IsAuth(err), "old password no longer works")
	_, err = env.Gateway.SignIn(ctx, testutil.OakEmail, "N3w#Secret")
	assert.NoError(t, err)
}
