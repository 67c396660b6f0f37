/*
Package httpserver serves the username registry dashboard and JSON API.

Routes:

	GET  /                                HTML dashboard (?account=, ?panel=, ?root=, ?check=)
	POST /ui/roots                        open a registration period from a form
	POST /ui/register                     register from a form (claim paste or published claim)
	POST /ui/deregister                   release the connected account's username
	GET  /api/roots                       accepted roots in acceptance order
	GET  /api/account                     dashboard view for the server's own account
	GET  /api/accounts/{address}          dashboard view for an account
	GET  /api/usernames/{username}/owner  owner lookup
	GET  /api/claims/{root}               published claim set of a period
	POST /api/admin/roots                 open a registration period
	POST /api/register                    register the connected account
	POST /api/deregister                  deregister the connected account

POST routes reject requests whose Origin or Sec-Fetch-Site header shows
another site, and the /api writes only accept application/json bodies.
Dashboard forms may only act for the server's own account.

Operational endpoints /livez, /readyz, /drain and /undrain follow the usual
load balancer contract. Draining flips readiness without closing listeners.
When EnablePprof is set the profiler is mounted under /debug.

Prometheus metrics are served on a separate listener at MetricsAddr.
*/
package httpserver
