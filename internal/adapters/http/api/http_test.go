package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/occupancy/internal/adapters/http/api"
	"github.com/okian/occupancy/internal/adapters/remote"
	"github.com/okian/occupancy/internal/adapters/repository"
	service "github.com/okian/occupancy/internal/app"
	"github.com/okian/occupancy/internal/domain/model"
	"github.com/okian/occupancy/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type heatmapBody struct {
	Anchor   string   `json:"anchor"`
	Months   int      `json:"months"`
	Headers  []string `json:"headers"`
	Degraded bool     `json:"degraded"`
	Rows     []struct {
		Employee model.Employee `json:"employee"`
		Cells    []struct {
			Label   string `json:"label"`
			Percent int    `json:"percent"`
		} `json:"cells"`
	} `json:"rows"`
}

func (b heatmapBody) percents(employeeID int64) []int {
	for _, r := range b.Rows {
		if r.Employee.ID != employeeID {
			continue
		}
		out := make([]int, len(r.Cells))
		for i, c := range r.Cells {
			out[i] = c.Percent
		}
		return out
	}
	return nil
}

type failingDirectory struct{}

func (failingDirectory) ListEmployees(context.Context, repository.EmployeeFilter) ([]model.Employee, error) {
	return nil, fmt.Errorf("resource service: %w: connection refused", repository.ErrCollaboratorUnavailable)
}

type fixture struct {
	server     *httptest.Server
	svc        *service.Service
	aoi        model.Employee
	ren        model.Employee
	projectID  int64
	customerID int64
}

func fixedClock() time.Time {
	return time.Date(2026, time.April, 18, 9, 0, 0, 0, time.UTC)
}

func newFixture(ctx context.Context, apiOpts []api.Option, svcOpts ...service.Option) fixture {
	store := repository.NewMemoryStore()
	aoi, err := store.CreateEmployee(ctx, model.Employee{Name: "Aoi Tanaka", Role: "Consultant"})
	So(err, ShouldBeNil)
	ren, err := store.CreateEmployee(ctx, model.Employee{Name: "Ren Sato", Role: "Manager"})
	So(err, ShouldBeNil)
	c, err := store.CreateCustomer(ctx, model.Customer{Name: "Acme"})
	So(err, ShouldBeNil)
	p, err := store.CreateProject(ctx, model.Project{Name: "Migration", CustomerID: c.ID, Status: model.StatusContracted})
	So(err, ShouldBeNil)

	svcOpts = append([]service.Option{
		service.WithStore(store),
		service.WithLogger(logger.Nop()),
		service.WithClock(fixedClock),
	}, svcOpts...)
	svc := service.New(svcOpts...)
	So(svc.Start(ctx), ShouldBeNil)

	srv := httptest.NewServer(api.NewServer(svc, svc, apiOpts...).Handler(ctx))
	return fixture{server: srv, svc: svc, aoi: aoi, ren: ren, projectID: p.ID, customerID: c.ID}
}

func (f fixture) close() {
	f.server.Close()
	f.svc.Stop()
}

func (f fixture) do(method, path, body string, header map[string]string) *http.Response {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, rdr)
	So(err, ShouldBeNil)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := f.server.Client().Do(req)
	So(err, ShouldBeNil)
	return resp
}

func decodeBody(resp *http.Response, into any) {
	defer resp.Body.Close()
	So(json.NewDecoder(resp.Body).Decode(into), ShouldBeNil)
}

func errorCode(resp *http.Response) string {
	var e struct {
		Code string `json:"code"`
	}
	decodeBody(resp, &e)
	return e.Code
}

const aprilAllocations = `{"employee_id": %d, "allocations": [
	{"start_date": "2026-04-01", "end_date": "2026-04-15", "effort_percent": 100},
	{"start_date": "2026-04-16", "end_date": "2026-04-30", "effort_percent": 50}
]}`

func TestHeatmapEndpoint(t *testing.T) {
	Convey("Given a server with one April assignment", t, func() {
		ctx := context.Background()
		f := newFixture(ctx, nil)
		Reset(f.close)

		resp := f.do(http.MethodPost, fmt.Sprintf("/projects/%d/assignments", f.projectID), fmt.Sprintf(aprilAllocations, f.aoi.ID), nil)
		So(resp.StatusCode, ShouldEqual, http.StatusCreated)
		resp.Body.Close()

		Convey("When requesting three months from a month label", func() {
			resp := f.do(http.MethodGet, "/heatmap?anchor=2026-04&months=3", "", nil)
			var body heatmapBody
			decodeBody(resp, &body)

			Convey("Then April averages to 75 and the idle employee is listed", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body.Anchor, ShouldEqual, "2026-04-01")
				So(body.Headers, ShouldResemble, []string{"2026-04", "2026-05", "2026-06"})
				So(body.Degraded, ShouldBeFalse)
				So(body.percents(f.aoi.ID), ShouldResemble, []int{75, 0, 0})
				So(body.percents(f.ren.ID), ShouldResemble, []int{0, 0, 0})
			})
		})

		Convey("When anchor and months are omitted", func() {
			resp := f.do(http.MethodGet, "/heatmap", "", nil)
			var body heatmapBody
			decodeBody(resp, &body)

			Convey("Then the clock and default months are used", func() {
				So(body.Anchor, ShouldEqual, "2026-04-18")
				So(body.Months, ShouldEqual, 6)
				So(body.Headers, ShouldHaveLength, 6)
				So(body.Headers[0], ShouldEqual, "2026-04")
			})
		})

		Convey("When filtering by role", func() {
			resp := f.do(http.MethodGet, "/heatmap?anchor=2026-04-01&months=1&role=Manager", "", nil)
			var body heatmapBody
			decodeBody(resp, &body)

			Convey("Then only matching employees are rows", func() {
				So(body.Rows, ShouldHaveLength, 1)
				So(body.Rows[0].Employee.ID, ShouldEqual, f.ren.ID)
			})
		})

		Convey("When the query is malformed", func() {
			badAnchor := f.do(http.MethodGet, "/heatmap?anchor=April", "", nil)
			zero := f.do(http.MethodGet, "/heatmap?months=0", "", nil)
			word := f.do(http.MethodGet, "/heatmap?months=abc", "", nil)
			tooMany := f.do(http.MethodGet, "/heatmap?months=25", "", nil)

			Convey("Then each is a bad request", func() {
				So(badAnchor.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(errorCode(badAnchor), ShouldEqual, "bad_request")
				So(zero.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(word.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(tooMany.StatusCode, ShouldEqual, http.StatusBadRequest)
				zero.Body.Close()
				word.Body.Close()
				tooMany.Body.Close()
			})
		})
	})
}

func TestHeatmapDegrade(t *testing.T) {
	Convey("Given an unavailable employee directory", t, func() {
		ctx := context.Background()

		Convey("When degrade is disabled", func() {
			f := newFixture(ctx, nil, service.WithDirectory(failingDirectory{}))
			Reset(f.close)
			resp := f.do(http.MethodGet, "/heatmap?anchor=2026-04-01&months=2", "", nil)

			Convey("Then the request fails with 503", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
				So(errorCode(resp), ShouldEqual, "collaborator_unavailable")
			})
		})

		Convey("When degrade is enabled", func() {
			f := newFixture(ctx, []api.Option{api.WithDegradeOnUnavailable(true)}, service.WithDirectory(failingDirectory{}))
			Reset(f.close)
			resp := f.do(http.MethodGet, "/heatmap?anchor=2026-04-01&months=2", "", nil)
			var body heatmapBody
			decodeBody(resp, &body)

			Convey("Then headers are served with no rows", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body.Degraded, ShouldBeTrue)
				So(body.Headers, ShouldResemble, []string{"2026-04", "2026-05"})
				So(body.Rows, ShouldBeEmpty)
			})
		})
	})
}

func TestAssignmentEndpoints(t *testing.T) {
	Convey("Given a server", t, func() {
		ctx := context.Background()
		f := newFixture(ctx, nil)
		Reset(f.close)
		path := fmt.Sprintf("/projects/%d/assignments", f.projectID)
		body := fmt.Sprintf(aprilAllocations, f.aoi.ID)

		Convey("When an assignment is posted twice with the same key", func() {
			key := map[string]string{api.IdempotencyKeyHeader: "req-1"}
			first := f.do(http.MethodPost, path, body, key)
			var created model.Assignment
			decodeBody(first, &created)
			second := f.do(http.MethodPost, path, body, key)
			var replayed model.Assignment
			decodeBody(second, &replayed)

			Convey("Then the second answer replays the first", func() {
				So(first.StatusCode, ShouldEqual, http.StatusCreated)
				So(first.Header.Get("Location"), ShouldEqual, fmt.Sprintf("/assignments/%d", created.ID))
				So(second.StatusCode, ShouldEqual, http.StatusOK)
				So(replayed.ID, ShouldEqual, created.ID)
				So(created.StartDate.String(), ShouldEqual, "2026-04-01")
				So(created.EndDate.String(), ShouldEqual, "2026-04-30")

				resp := f.do(http.MethodGet, "/assignments", "", nil)
				var list []model.Assignment
				decodeBody(resp, &list)
				So(list, ShouldHaveLength, 1)
			})

			Convey("And deleting it twice answers 204 then 404", func() {
				del := f.do(http.MethodDelete, fmt.Sprintf("/assignments/%d", created.ID), "", nil)
				del.Body.Close()
				So(del.StatusCode, ShouldEqual, http.StatusNoContent)
				again := f.do(http.MethodDelete, fmt.Sprintf("/assignments/%d", created.ID), "", nil)
				So(again.StatusCode, ShouldEqual, http.StatusNotFound)
				So(errorCode(again), ShouldEqual, "not_found")
			})
		})

		Convey("When the allocations are invalid", func() {
			empty := f.do(http.MethodPost, path, fmt.Sprintf(`{"employee_id": %d, "allocations": []}`, f.aoi.ID), nil)
			reversed := f.do(http.MethodPost, path, fmt.Sprintf(`{"employee_id": %d, "allocations": [
				{"start_date": "2026-05-01", "end_date": "2026-04-01", "effort_percent": 10}]}`, f.aoi.ID), nil)
			badJSON := f.do(http.MethodPost, path, `{"employee_id":`, nil)
			unknown := f.do(http.MethodPost, "/projects/999/assignments", body, nil)

			Convey("Then bad input is 400 and a missing project is 404", func() {
				So(empty.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(reversed.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(badJSON.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(unknown.StatusCode, ShouldEqual, http.StatusNotFound)
				for _, r := range []*http.Response{empty, reversed, badJSON, unknown} {
					r.Body.Close()
				}
			})
		})

		Convey("When listing allocations by range", func() {
			created := f.do(http.MethodPost, path, body, nil)
			created.Body.Close()

			inRange := f.do(http.MethodGet, "/allocations?start_date=2026-04-15&end_date=2026-04-15", "", nil)
			var got []model.Allocation
			decodeBody(inRange, &got)
			half := f.do(http.MethodGet, "/allocations?start_date=2026-04-15", "", nil)
			reversed := f.do(http.MethodGet, "/allocations?start_date=2026-05-01&end_date=2026-04-01", "", nil)

			Convey("Then the range is inclusive and must be complete", func() {
				So(got, ShouldHaveLength, 1)
				So(got[0].EffortPercent, ShouldEqual, 100)
				So(half.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(reversed.StatusCode, ShouldEqual, http.StatusBadRequest)
				half.Body.Close()
				reversed.Body.Close()
			})
		})
	})
}

func TestCatalogEndpoints(t *testing.T) {
	Convey("Given a server", t, func() {
		ctx := context.Background()
		f := newFixture(ctx, nil)
		Reset(f.close)

		Convey("When creating a customer and project", func() {
			resp := f.do(http.MethodPost, "/customers", `{"name": "Globex", "industry": "Energy"}`, nil)
			var c model.Customer
			decodeBody(resp, &c)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)

			resp = f.do(http.MethodPost, "/projects", fmt.Sprintf(
				`{"name": "Grid", "customer_id": %d, "status": "proposal", "start_date": "2026-01-01", "end_date": "2026-06-30"}`, c.ID), nil)
			var p model.Project
			decodeBody(resp, &p)

			Convey("Then the project can be read back", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				got := f.do(http.MethodGet, fmt.Sprintf("/projects/%d", p.ID), "", nil)
				var read model.Project
				decodeBody(got, &read)
				So(read, ShouldResemble, p)
			})
		})

		Convey("When a project is replaced", func() {
			path := fmt.Sprintf("/projects/%d", f.projectID)
			resp := f.do(http.MethodPut, path, fmt.Sprintf(`{"name": "Migration II", "customer_id": %d, "contract_amount": 5000, "start_date": "2026-02-01", "end_date": "2026-09-30"}`, f.customerID), nil)
			var p model.Project
			decodeBody(resp, &p)
			mismatch := f.do(http.MethodPut, path, fmt.Sprintf(`{"id": 999, "name": "X", "customer_id": %d}`, f.customerID), nil)
			missing := f.do(http.MethodPut, "/projects/999", fmt.Sprintf(`{"name": "X", "customer_id": %d}`, f.customerID), nil)
			reversed := f.do(http.MethodPut, path, fmt.Sprintf(`{"name": "X", "customer_id": %d, "start_date": "2026-09-30", "end_date": "2026-02-01"}`, f.customerID), nil)
			for _, r := range []*http.Response{mismatch, missing, reversed} {
				r.Body.Close()
			}

			Convey("Then fields are replaced and the status is kept", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(p.ID, ShouldEqual, f.projectID)
				So(p.Name, ShouldEqual, "Migration II")
				So(p.Status, ShouldEqual, model.StatusContracted)
				So(p.EndDate.String(), ShouldEqual, "2026-09-30")

				got := f.do(http.MethodGet, path, "", nil)
				var read model.Project
				decodeBody(got, &read)
				So(read, ShouldResemble, p)
			})

			Convey("And bad updates are rejected", func() {
				So(mismatch.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(missing.StatusCode, ShouldEqual, http.StatusNotFound)
				So(reversed.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a project has an unknown status or id", func() {
			status := f.do(http.MethodPost, "/projects", `{"name": "X", "customer_id": 1, "status": "someday"}`, nil)
			badID := f.do(http.MethodGet, "/projects/abc", "", nil)
			missing := f.do(http.MethodGet, "/projects/999", "", nil)

			Convey("Then it is rejected", func() {
				So(status.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(badID.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(missing.StatusCode, ShouldEqual, http.StatusNotFound)
				for _, r := range []*http.Response{status, badID, missing} {
					r.Body.Close()
				}
			})
		})

		Convey("When listing employees with a query", func() {
			resp := f.do(http.MethodGet, "/employees?q=tanaka", "", nil)
			var list []model.Employee
			decodeBody(resp, &list)
			empty := f.do(http.MethodGet, "/employees?role=Partner", "", nil)
			raw, err := io.ReadAll(empty.Body)
			empty.Body.Close()

			Convey("Then matches are returned and no match is an empty array", func() {
				So(list, ShouldHaveLength, 1)
				So(list[0].ID, ShouldEqual, f.aoi.ID)
				So(err, ShouldBeNil)
				So(string(bytes.TrimSpace(raw)), ShouldEqual, "[]")
			})
		})

		Convey("When an employee has no name", func() {
			resp := f.do(http.MethodPost, "/employees", `{"role": "Consultant"}`, nil)
			resp.Body.Close()

			Convey("Then it is a bad request", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given a server", t, func() {
		ctx := context.Background()
		f := newFixture(ctx, nil)
		Reset(f.close)

		Convey("When a request id is supplied", func() {
			resp := f.do(http.MethodGet, "/employees", "", map[string]string{api.RequestIDHeader: "trace-42"})
			resp.Body.Close()
			generated := f.do(http.MethodGet, "/employees", "", nil)
			generated.Body.Close()

			Convey("Then it is echoed, otherwise one is generated", func() {
				So(resp.Header.Get(api.RequestIDHeader), ShouldEqual, "trace-42")
				So(generated.Header.Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})

		Convey("When scraping health after a heatmap", func() {
			hm := f.do(http.MethodGet, "/heatmap?anchor=2026-04-01&months=1", "", nil)
			hm.Body.Close()
			resp := f.do(http.MethodGet, "/healthz", "", nil)
			raw, err := io.ReadAll(resp.Body)
			resp.Body.Close()

			Convey("Then Prometheus metrics are exposed", func() {
				So(err, ShouldBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(raw), ShouldContainSubstring, "occupancy_heatmap_heatmaps_built_total")
				So(string(raw), ShouldContainSubstring, `endpoint="/heatmap"`)
			})
		})

		Convey("When reading stats", func() {
			resp := f.do(http.MethodGet, "/stats", "", nil)
			var stats map[string]any
			decodeBody(resp, &stats)

			Convey("Then store counts are reported", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["employees"], ShouldEqual, float64(2))
				So(stats["maxMonths"], ShouldEqual, float64(24))
			})
		})
	})
}

func TestRemoteCollaborators(t *testing.T) {
	Convey("Given a downstream service reading from an upstream server", t, func() {
		ctx := context.Background()
		upstream := newFixture(ctx, nil)
		Reset(upstream.close)
		resp := upstream.do(http.MethodPost, fmt.Sprintf("/projects/%d/assignments", upstream.projectID),
			fmt.Sprintf(aprilAllocations, upstream.aoi.ID), nil)
		resp.Body.Close()

		client := remote.New(upstream.server.URL, upstream.server.URL, remote.WithLogger(logger.Nop()))
		downstream := newFixture(ctx, nil,
			service.WithDirectory(client),
			service.WithAssignmentReader(client),
		)
		Reset(downstream.close)

		Convey("When the downstream heatmap is requested", func() {
			resp := downstream.do(http.MethodGet, "/heatmap?anchor=2026-04-01&months=2", "", nil)
			var body heatmapBody
			decodeBody(resp, &body)

			Convey("Then it reflects the upstream data", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body.percents(upstream.aoi.ID), ShouldResemble, []int{75, 0})
			})
		})

		Convey("When the upstream goes away", func() {
			upstream.server.Close()
			resp := downstream.do(http.MethodGet, "/heatmap?anchor=2026-04-01&months=2", "", nil)

			Convey("Then the downstream reports the collaborator as unavailable", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
				So(errorCode(resp), ShouldEqual, "collaborator_unavailable")
			})
		})
	})
}
